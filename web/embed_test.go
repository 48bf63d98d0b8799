package web

import (
	"io/fs"
	"strings"
	"testing"
)

func TestContentEmbedsDashboard(t *testing.T) {
	for _, name := range []string{"index.html", "app.js", "styles.css"} {
		data, err := fs.ReadFile(Content, name)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	index, _ := fs.ReadFile(Content, "index.html")
	if !strings.Contains(string(index), `src="app.js"`) {
		t.Error("index.html does not load app.js")
	}
}
