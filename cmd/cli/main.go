package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yourusername/tunepack-go/internal/app"
	"github.com/yourusername/tunepack-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "tunepack",
		Short: "TunePack CLI - Batch playlist downloader for Netease Cloud Music",
		Long:  `A command-line interface for searching playlists and downloading them as ZIP archives.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func getJSON(path string, out interface{}) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func postJSON(path string, payload, out interface{}) (int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewBuffer(data)
	}

	resp, err := http.Post(serverURL+path, "application/json", reader)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

var searchCmd = &cobra.Command{
	Use:   "search [keywords]",
	Short: "Search playlists",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var result struct {
			Playlists []domain.PlaylistSummary `json:"playlists"`
		}
		query := "/api/v1/playlists/search?keywords=" + strings.Join(args, "+") + "&limit=" + strconv.Itoa(limit)
		if err := getJSON(query, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(result.Playlists) == 0 {
			fmt.Println("No playlists found")
			return
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Tracks", "Creator", "Plays"})
		for _, p := range result.Playlists {
			table.Append([]string{
				strconv.FormatInt(p.ID, 10),
				p.Name,
				strconv.Itoa(p.TrackCount),
				p.Creator,
				humanize.Comma(p.PlayCount),
			})
		}
		table.Render()
	},
}

var showCmd = &cobra.Command{
	Use:   "show [playlist-id]",
	Short: "Show the tracks of a playlist",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		playlist, err := fetchPlaylist(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s (%d tracks) by %s\n\n", color.CyanString(playlist.Name), playlist.TrackCount, playlist.Creator)

		vip := color.New(color.FgYellow).SprintFunc()
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "ID", "Title", "Artists", "Album", ""})
		for i, t := range playlist.Tracks {
			tag := ""
			if t.IsVIP() {
				tag = vip("VIP")
			}
			table.Append([]string{
				strconv.Itoa(i + 1),
				strconv.FormatInt(t.ID, 10),
				t.Name,
				t.ArtistNames(),
				t.Album,
				tag,
			})
		}
		table.Render()
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [playlist-id]",
	Short: "Download a playlist as a ZIP archive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		all, _ := cmd.Flags().GetBool("all")
		idsFlag, _ := cmd.Flags().GetString("tracks")

		playlist, err := fetchPlaylist(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(playlist.Tracks) == 0 {
			fmt.Fprintln(os.Stderr, "Error: playlist has no tracks")
			os.Exit(1)
		}

		trackIDs, err := pickTracks(playlist, all, idsFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(trackIDs) == 0 {
			fmt.Println("Nothing selected")
			return
		}

		if !confirmVIP(playlist, trackIDs) {
			fmt.Println("Download cancelled")
			return
		}

		payload := map[string]interface{}{
			"playlist_id": playlist.ID,
			"track_ids":   trackIDs,
		}
		var started struct {
			Playlist string          `json:"playlist"`
			Selected int             `json:"selected"`
			Status   app.BatchStatus `json:"status"`
		}
		if _, err := postJSON("/api/v1/batches", payload, &started); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Downloading %d tracks from %s\n", started.Selected, color.CyanString(started.Playlist))
		summary := watchBatch(started.Status.BatchID)
		printSummary(summary)
	},
}

// pickTracks turns the flags, or an interactive prompt, into a track
// ID selection
func pickTracks(playlist *domain.Playlist, all bool, idsFlag string) ([]int64, error) {
	if all {
		ids := make([]int64, 0, len(playlist.Tracks))
		for _, t := range playlist.Tracks {
			ids = append(ids, t.ID)
		}
		return ids, nil
	}

	if idsFlag != "" {
		var ids []int64
		for _, part := range strings.Split(idsFlag, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid track id %q", part)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	options := make([]string, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		label := fmt.Sprintf("%s - %s", t.ArtistNames(), t.Name)
		if t.IsVIP() {
			label += " [VIP]"
		}
		options = append(options, label)
	}

	var picked []int
	prompt := &survey.MultiSelect{
		Message:  "Select tracks to download:",
		Options:  options,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(picked))
	for _, idx := range picked {
		ids = append(ids, playlist.Tracks[idx].ID)
	}
	return ids, nil
}

// confirmVIP surfaces the three-way choice when the selection holds
// VIP tracks and no session is active. Returns false to cancel.
func confirmVIP(playlist *domain.Playlist, trackIDs []int64) bool {
	wanted := make(map[int64]bool, len(trackIDs))
	for _, id := range trackIDs {
		wanted[id] = true
	}
	var vipCount int
	for _, t := range playlist.Tracks {
		if wanted[t.ID] && t.IsVIP() {
			vipCount++
		}
	}
	if vipCount == 0 {
		return true
	}

	var status domain.LoginStatus
	if err := getJSON("/api/v1/auth/status", &status); err == nil && status.Authenticated {
		return true
	}

	fmt.Printf("%s %d selected tracks need VIP. Without login they download as previews.\n",
		color.YellowString("Note:"), vipCount)

	choice := ""
	prompt := &survey.Select{
		Message: "How do you want to proceed?",
		Options: []string{"Log in first", "Download previews", "Cancel"},
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return false
	}

	switch choice {
	case "Log in first":
		fmt.Println("Waiting for QR login, check the server output for the QR code...")
		var login domain.LoginStatus
		if _, err := postJSON("/api/v1/auth/login", nil, &login); err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			return false
		}
		fmt.Printf("Logged in as %s\n", color.GreenString(login.Nickname))
		return true
	case "Download previews":
		return true
	}
	return false
}

// watchBatch polls the batch status until it leaves the active state,
// driving a progress bar, then fetches the terminal summary
func watchBatch(batchID string) *domain.Summary {
	var bar *progressbar.ProgressBar

	for {
		time.Sleep(500 * time.Millisecond)

		var status app.BatchStatus
		if err := getJSON("/api/v1/batches/current", &status); err != nil {
			continue
		}
		if !status.Active || status.BatchID != batchID {
			break
		}

		if status.Phase == domain.PhaseFetching && status.Progress.Total > 0 {
			if bar == nil {
				bar = progressbar.NewOptions(status.Progress.Total,
					progressbar.OptionSetDescription("downloading"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
				)
			}
			bar.Set(status.Progress.Completed)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	var summary domain.Summary
	if err := getJSON("/api/v1/batches/last", &summary); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return &summary
}

func printSummary(summary *domain.Summary) {
	if summary.Err != "" {
		fmt.Printf("%s %s\n", color.RedString("Batch failed:"), summary.Err)
	}

	fmt.Printf("%s %d succeeded, %s %d failed, %s %d excluded\n",
		color.GreenString("✔"), len(summary.Succeeded),
		color.RedString("✘"), len(summary.Failed),
		color.YellowString("−"), len(summary.Excluded))

	if len(summary.Failed) > 0 || len(summary.Excluded) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Track ID", "Outcome", "Reason"})
		for _, f := range summary.Failed {
			table.Append([]string{strconv.FormatInt(f.TrackID, 10), "failed", f.Reason})
		}
		for _, e := range summary.Excluded {
			table.Append([]string{strconv.FormatInt(e.TrackID, 10), "excluded", e.Reason})
		}
		table.Render()
	}

	if summary.ArchivePath != "" {
		fmt.Printf("Archive saved to %s (%s)\n",
			color.CyanString(summary.ArchivePath),
			humanize.Bytes(uint64(summary.ArchiveSize)))
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login and batch status",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var login domain.LoginStatus
		if err := getJSON("/api/v1/auth/status", &login); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if login.Authenticated {
			fmt.Printf("Logged in as %s\n", color.GreenString(login.Nickname))
		} else {
			fmt.Println("Not logged in")
		}

		var batch app.BatchStatus
		if err := getJSON("/api/v1/batches/current", &batch); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if batch.Active {
			fmt.Printf("Batch %s: %s (%d/%d)\n",
				batch.BatchID, batch.Phase, batch.Progress.Completed, batch.Progress.Total)
		} else {
			fmt.Println("No batch running")
		}
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a QR code",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		fmt.Println("Waiting for QR login, check the server output for the QR code...")
		var login domain.LoginStatus
		if _, err := postJSON("/api/v1/auth/login", nil, &login); err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Logged in as %s\n", color.GreenString(login.Nickname))
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View batch event logs (batch, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var result struct {
			Entries []map[string]interface{} `json:"entries"`
		}
		if err := getJSON("/api/v1/logs/"+args[0]+"?limit="+strconv.Itoa(limit), &result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, entry := range result.Entries {
			pretty, _ := json.Marshal(entry)
			fmt.Println(string(pretty))
		}
	},
}

func fetchPlaylist(arg string) (*domain.Playlist, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist id %q", arg)
	}

	var playlist domain.Playlist
	if err := getJSON("/api/v1/playlists/"+strconv.FormatInt(id, 10), &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

func init() {
	searchCmd.Flags().IntP("limit", "l", 20, "Maximum number of results")
	downloadCmd.Flags().BoolP("all", "a", false, "Download every track without prompting")
	downloadCmd.Flags().StringP("tracks", "t", "", "Comma-separated track IDs to download")
	logsCmd.Flags().IntP("limit", "l", 50, "Maximum number of entries")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
