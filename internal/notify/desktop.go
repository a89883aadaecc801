package notify

import (
	"context"
	"os/exec"
	"time"
)

const appName = "joona"

// Desktop shows a notification through notify-send, which sway, GNOME and
// KDE all route to their notification daemon.
func Desktop(summary, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, "notify-send", desktopArgs(summary, body)...).Run()
}

func desktopArgs(summary, body string) []string {
	args := []string{"--app-name=" + appName, "--expire-time=3000", summary}
	if body != "" {
		args = append(args, body)
	}
	return args
}
