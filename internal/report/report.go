// Package report renders a harness run as an HTML page plus a structured
// JSON dump, and packages the report directory as a zip for mailing.
package report

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zhijianai/chatprobe/internal/harness"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

// Data is everything the report shows about one run.
type Data struct {
	GeneratedAt time.Time
	ShopName    string
	Product     *zhiyan.Product
	Questions   []string
	Summary     harness.Summary
}

// PassRate renders the success ratio as a percentage string, "N/A" for an
// empty run.
func (d Data) PassRate() string {
	if d.Summary.Total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(d.Summary.Succeeded)/float64(d.Summary.Total)*100)
}

// AllPassed reports whether every conversation succeeded.
func (d Data) AllPassed() bool {
	return d.Summary.Failed == 0 && d.Summary.Total > 0
}

// DurationText renders the run duration human-readably.
func (d Data) DurationText() string {
	return formatDuration(d.Summary.Duration)
}

func formatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
}

// Render produces the HTML report body.
func Render(data Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the report into dir as report.html and results.json,
// creating dir if needed. Returns the HTML path.
func Write(dir string, data Data) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	html, err := Render(data)
	if err != nil {
		return "", err
	}
	htmlPath := filepath.Join(dir, "report.html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return "", fmt.Errorf("write report.html: %w", err)
	}

	raw, err := json.MarshalIndent(data.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "results.json"), raw, 0o644); err != nil {
		return "", fmt.Errorf("write results.json: %w", err)
	}

	return htmlPath, nil
}

// Zip packages every file under dir into zipPath (outside dir).
func Zip(dir, zipPath string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("zip report dir: %w", err)
	}
	return zw.Close()
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>chatprobe run report</title>
<style>
body { font-family: "Microsoft YaHei", Arial, sans-serif; background: #f5f5f5; padding: 20px; }
.container { max-width: 720px; margin: 0 auto; background: #fff; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); overflow: hidden; }
.header { background: #2c3e50; color: #fff; padding: 16px 24px; }
.status { font-weight: bold; color: {{if .AllPassed}}#27ae60{{else}}#e74c3c{{end}}; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #eee; padding: 8px 12px; text-align: left; vertical-align: top; }
.fail td { background: #fdecea; }
.meta { padding: 12px 24px; color: #555; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h2>Chat conversation run — <span class="status">{{if .AllPassed}}all passed{{else}}{{.Summary.Failed}} failed{{end}}</span></h2>
  </div>
  <div class="meta">
    <p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}} · shop {{.ShopName}}{{with .Product}} · product {{.Title}}{{end}}</p>
    <p>Conversations: {{.Summary.Total}} · passed {{.Summary.Succeeded}} · failed {{.Summary.Failed}} · pass rate {{.PassRate}} · duration {{.DurationText}}</p>
  </div>
  <table>
    <tr><th>#</th><th>User</th><th>Status</th><th>Messages</th><th>Duration</th><th>Detail</th></tr>
    {{range .Summary.Results}}
    <tr{{if not .Success}} class="fail"{{end}}>
      <td>{{.ConversationID}}</td>
      <td>{{.Username}}</td>
      <td>{{if .Success}}PASS{{else}}FAIL{{end}}</td>
      <td>{{.TotalMessages}}</td>
      <td>{{printf "%.2fs" .Duration}}</td>
      <td>
        {{if .Success}}
          {{range .Turns}}<div><b>Q:</b> {{.Question}}<br><b>A:</b> {{.Reply}}</div>{{end}}
        {{else}}
          {{.Error}}
        {{end}}
      </td>
    </tr>
    {{end}}
  </table>
</div>
</body>
</html>
`))
