package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 300

// QRHandler serves a QR code pointing customers at the public menu.
type QRHandler struct {
	MenuURL string
}

func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(h.MenuURL, qrcode.Medium, qrSize)
	if err != nil {
		slog.Error("QR generation failed", "url", h.MenuURL, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	if r.URL.Query().Get("format") == "dataurl" {
		writeJSON(w, http.StatusOK, map[string]string{
			"qrCode": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}
