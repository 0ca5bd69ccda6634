package httpapi

import (
	"log/slog"
	"net/http"

	"holyiot-gateway/internal/utils"
)

type healthResponse struct {
	Status  string `json:"status"`
	MQTT    string `json:"mqtt"`
	Journal string `json:"journal"`
}

type healthchecker struct {
	broker  Broker
	journal Pinger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", MQTT: "connected", Journal: "disabled"}
	status := http.StatusOK

	if !h.broker.IsConnected() {
		resp.MQTT = "disconnected"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if h.journal != nil {
		if err := h.journal.PingContext(r.Context()); err != nil {
			slog.Error("failed to check capture journal connectivity", "error", err)
			resp.Journal = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Journal = "ok"
		}
	}

	utils.WriteJSON(w, status, resp)
}

func registerHealthcheck(mux *http.ServeMux, broker Broker, journal Pinger) {
	h := &healthchecker{broker: broker, journal: journal}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
