package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
)

const (
	templateDir       = "templates"
	templateExtension = ".gohtml"
	staticDir         = "static"
)

var (
	//go:embed static
	staticFiles embed.FS

	//go:embed templates
	templateFiles embed.FS
)

// views returns the page template engine. In dev mode templates are read from
// the source tree and reloaded on every render.
func views(devMode bool) *html.Engine {
	var engine *html.Engine

	if devMode {
		engine = html.New("./internal/web/"+templateDir, templateExtension)
		engine.ShouldReload = true

		log.Warn().Msg("debug mode enabled: using local filesystem for templates")
	} else {
		engine = html.NewFileSystem(subFS(templateFiles, templateDir), templateExtension)
	}

	engine.AddFunc("join", strings.Join)

	return engine
}

// staticFS serves the embedded css and scripts below /static.
func staticFS() http.FileSystem {
	return subFS(staticFiles, staticDir)
}

func subFS(files embed.FS, dir string) http.FileSystem {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		// dir is embedded at compile time
		panic(err)
	}

	return http.FS(sub)
}
