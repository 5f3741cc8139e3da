package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/LagoAI/LiebExplorer/pkg/api"
	"github.com/LagoAI/LiebExplorer/pkg/orchestrator"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = cellStyle.Foreground(lipgloss.Color("42"))
	errorStyle   = cellStyle.Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// runStatus prints the instances of a running server.
func runStatus(ctx context.Context, args []string, base EnvConfig, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	addr := fs.String("addr", serverURL(base.Addr), "Base URL of the server")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := fetchInstances(ctx, &http.Client{Timeout: *timeout}, *addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderStatus(resp))
	return nil
}

// serverURL turns a listen address such as ":8000" into a URL.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func fetchInstances(ctx context.Context, client *http.Client, baseURL string) (api.InstancesResponse, error) {
	url := strings.TrimRight(baseURL, "/") + api.BasePath + "/instances"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return api.InstancesResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return api.InstancesResponse{}, fmt.Errorf("failed to reach %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != nil {
			return api.InstancesResponse{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return api.InstancesResponse{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var out api.InstancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.InstancesResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// renderStatus draws the instance table.
func renderStatus(resp api.InstancesResponse) string {
	title := titleStyle.Render(fmt.Sprintf("LiebExplorer: %d instance(s)", resp.Total))
	if len(resp.Instances) == 0 {
		return title + "\n" + mutedStyle.Render("no instances running")
	}

	rows := make([][]string, 0, len(resp.Instances))
	statuses := make([]orchestrator.Status, 0, len(resp.Instances))
	for _, info := range resp.Instances {
		p := info.Placement
		rows = append(rows, []string{
			info.ID,
			string(info.Status),
			info.Fingerprint.Platform,
			fmt.Sprintf("%dx%d@%d,%d", p.Width, p.Height, p.X, p.Y),
			fmt.Sprintf("%g%%", info.ZoomLevel),
			truncate(info.URL, 48),
		})
		statuses = append(statuses, info.Status)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "STATUS", "PLATFORM", "WINDOW", "ZOOM", "URL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 || row >= len(statuses) {
				return headerStyle
			}
			if col == 1 {
				switch statuses[row] {
				case orchestrator.StatusRunning:
					return runningStyle
				case orchestrator.StatusError:
					return errorStyle
				}
			}
			return cellStyle
		})

	return title + "\n" + t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
