package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/petems/transvox/internal/audio"
	"github.com/petems/transvox/internal/capture"
	"github.com/petems/transvox/internal/wav"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(16)
	recStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func printSummary(w io.Writer, title string, rows [][2]string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, r := range rows {
		fmt.Fprintln(w, "  "+labelStyle.Render(r[0])+r[1])
	}
}

// recordingRows describes a finished recording. Duration and format come
// from the header on disk so the summary shows what a player will see.
func recordingRows(st capture.Stats) [][2]string {
	rows := [][2]string{{"file", st.Path}}
	if h, err := wav.ReadHeaderFile(st.Path); err == nil {
		rows = append(rows,
			[2]string{"duration", h.Duration().Round(10 * time.Millisecond).String()},
			[2]string{"format", fmt.Sprintf("%d Hz, %d-bit, %d ch", h.SampleRate, h.BitsPerSample, h.NumChannels)},
		)
	} else {
		rows = append(rows, [2]string{"duration", st.Duration.Round(10*time.Millisecond).String() + " (header unreadable)"})
	}
	return append(rows,
		[2]string{"source", fmt.Sprintf("%d Hz, %d ch", st.SourceFormat.SampleRate, st.SourceFormat.Channels)},
		[2]string{"frames", fmt.Sprintf("%d (%d dropped)", st.FramesReceived, st.FramesDropped)},
	)
}

func printDevices(w io.Writer, backend string, devices []audio.DeviceInfo) {
	fmt.Fprintln(w, titleStyle.Render("Devices ("+backend+")"))
	if len(devices) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none found"))
		return
	}
	for _, d := range devices {
		var tags string
		if d.Default {
			tags += " default"
		}
		if d.Loopback {
			tags += " loopback"
		}
		fmt.Fprintf(w, "  %s %s%s\n", d.Name, dimStyle.Render("["+d.ID+"]"), busyStyle.Render(tags))
	}
}

// consoleStatus prints command progress on stderr
type consoleStatus struct {
	w io.Writer
}

func newConsoleStatus(w io.Writer) *consoleStatus {
	return &consoleStatus{w: w}
}

func (c *consoleStatus) SetRecording(path string) {
	fmt.Fprintln(c.w, recStyle.Render("● REC")+" "+path+dimStyle.Render("  (Ctrl+C to stop)"))
}

func (c *consoleStatus) SetProcessing(what string) {
	fmt.Fprintln(c.w, busyStyle.Render("… "+what))
}

func (c *consoleStatus) SetIdle() {}
