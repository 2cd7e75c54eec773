package server

import (
	"log/slog"

	"github.com/matthewsawatzky/themeswitch/internal/preview"
	"github.com/matthewsawatzky/themeswitch/internal/shell"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

type Options struct {
	Shell    *shell.Shell
	Logger   *slog.Logger
	Bind     string
	Port     int
	BasePath string
	HTTPS    bool
	CertFile string
	KeyFile  string
	Version  string
}

type themeEntry struct {
	theme.Descriptor
	Palette preview.Palette `json:"palette"`
	Active  bool            `json:"active"`
}

type selectRequest struct {
	Theme string `json:"theme"`
}

type stepRequest struct {
	Delta int `json:"delta"`
}

// streamMessage is one frame on the events socket.
type streamMessage struct {
	Type   string        `json:"type"`
	Event  any           `json:"event,omitempty"`
	Notice *shell.Notice `json:"notice,omitempty"`
}
