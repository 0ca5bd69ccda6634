package httpapi

import (
	"net/http"

	"holyiot-gateway/internal/utils"
)

func registerDevices(mux *http.ServeMux, devices DeviceLister) {
	mux.HandleFunc("GET /devices", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, devices.Devices())
	})
}
