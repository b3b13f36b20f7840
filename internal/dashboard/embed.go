package dashboard

import (
	"embed"
	"io/fs"
)

//go:embed static
var embeddedFS embed.FS

// staticFS is the page and its assets, rooted at static/.
var staticFS = mustSub(embeddedFS, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic("dashboard: failed to create sub filesystem: " + err.Error())
	}
	return sub
}
