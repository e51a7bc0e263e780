// Package dashboard renders Grafana dashboards over the GreptimeDB tables
// written by the telemetry package.
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"matchbot/internal/config"
	"matchbot/internal/telemetry"
)

//go:embed templates/*.tmpl
var templates embed.FS

var templateFiles = []string{
	"templates/matchbot-dashboard.json.tmpl",
}

type data struct {
	PoseTable  string
	EventTable string
	SizeX      float64
	SizeY      float64
}

// Render writes the dashboards for table into outDir. Templates read the
// datasource uid from GREPTIMEDB_DATASOURCE_UID.
func Render(outDir string, table config.Table) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	d := data{
		PoseTable:  telemetry.PoseTable,
		EventTable: telemetry.EventTable,
		SizeX:      table.SizeX,
		SizeY:      table.SizeY,
	}
	for _, tplName := range templateFiles {
		t, err := template.New(filepath.Base(tplName)).Funcs(funcMap).ParseFS(templates, tplName)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(tplName), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, d); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
