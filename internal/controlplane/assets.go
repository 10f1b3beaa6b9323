package controlplane

import (
	"embed"
	"io/fs"
)

//go:embed dashboard
var dashboardFS embed.FS

func dashboardSub() fs.FS {
	sub, err := fs.Sub(dashboardFS, "dashboard")
	if err != nil {
		panic(err)
	}
	return sub
}
