package report

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/harness"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

func sampleData() Data {
	return Data{
		GeneratedAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		ShopName:    "儒意化妆品旗舰店",
		Product:     &zhiyan.Product{ID: "880001", Title: "氨基酸洗面奶"},
		Questions:   []string{"q1", "q2"},
		Summary: harness.Summary{
			Total:     3,
			Succeeded: 2,
			Failed:    1,
			Duration:  42.5,
			Results: []conversation.Result{
				{ConversationID: 0, Username: "tb_1_1", Success: true, Duration: 12.1, TotalMessages: 4,
					Turns: []conversation.TurnResult{{Question: "q1", Reply: "a1"}, {Question: "q2", Reply: "a2"}}},
				{ConversationID: 2, Username: "tb_1_3", Success: true, Duration: 13.0, TotalMessages: 4,
					Turns: []conversation.TurnResult{{Question: "q1", Reply: "a1"}, {Question: "q2", Reply: "a2"}}},
				{ConversationID: 1, Username: "tb_1_2", Success: false, Duration: 2.3,
					Error: "chat API returned code 500: internal error"},
			},
		},
	}
}

func TestRender_ContainsSummaryAndFailures(t *testing.T) {
	html, err := Render(sampleData())
	require.NoError(t, err)

	page := string(html)
	assert.Contains(t, page, "1 failed")
	assert.Contains(t, page, "66.7%")
	assert.Contains(t, page, "42.5s")
	assert.Contains(t, page, "tb_1_2")
	assert.Contains(t, page, "chat API returned code 500")
	assert.Contains(t, page, "氨基酸洗面奶")
}

func TestRender_AllPassed(t *testing.T) {
	data := sampleData()
	data.Summary.Failed = 0
	data.Summary.Succeeded = 3
	data.Summary.Results = data.Summary.Results[:2]

	html, err := Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(html), "all passed")
}

func TestPassRate_EmptyRun(t *testing.T) {
	assert.Equal(t, "N/A", Data{}.PassRate())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42.5s", formatDuration(42.5))
	assert.Equal(t, "2.0m", formatDuration(120))
	assert.Equal(t, "1.5h", formatDuration(5400))
}

func TestWriteAndZip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	htmlPath, err := Write(dir, sampleData())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.html"), htmlPath)

	raw, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)
	var summary harness.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Len(t, summary.Results, 3)

	zipPath := filepath.Join(t.TempDir(), "report.zip")
	require.NoError(t, Zip(dir, zipPath))

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"report.html", "results.json"}, names)
}

func TestRender_EscapesReplyText(t *testing.T) {
	data := sampleData()
	data.Summary.Results[0].Turns[0].Reply = `<script>alert("x")</script>`

	html, err := Render(data)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(html), "<script>alert"),
		"reply text must be HTML-escaped")
}
