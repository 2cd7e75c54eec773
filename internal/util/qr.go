package util

import (
	"fmt"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

// PrintTerminalQR writes value as a half-block QR code. Encoding errors are
// ignored since the code is only a convenience next to the printed URL.
func PrintTerminalQR(w io.Writer, value string) {
	qr, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return
	}
	fmt.Fprintln(w, qr.ToSmallString(false))
}
