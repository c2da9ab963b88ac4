package handlers

// Error messages shown to panel users, keyed by locale then error code.
var messages = map[string]map[string]string{
	"en": {
		"service_busy":       "Sorry, the model is still starting up. Try again in a bit.",
		"job_failed":         "The prediction failed.",
		"submission_failed":  "The submission failed!",
		"poll_failed":        "Lost track of the prediction while waiting for it.",
		"malformed_response": "The model returned a response the panel could not read.",
		"timeout":            "The prediction took too long.",
		"invalid_input":      "Some inputs are invalid.",
		"image_required":     "Please provide an image.",
		"upload_too_large":   "The uploaded file is too large.",
		"internal":           "Something went wrong.",
		"not_found":          "Not found.",
		"history_disabled":   "Prediction history is not enabled.",
	},
	"id": {
		"service_busy":       "Maaf, model masih dalam proses inisialisasi. Coba lagi sebentar lagi.",
		"job_failed":         "Prediksi gagal.",
		"submission_failed":  "Pengiriman gagal!",
		"poll_failed":        "Status prediksi tidak dapat dipantau.",
		"malformed_response": "Model mengembalikan respons yang tidak dapat dibaca.",
		"timeout":            "Prediksi memakan waktu terlalu lama.",
		"invalid_input":      "Beberapa input tidak valid.",
		"image_required":     "Silakan unggah gambar.",
		"upload_too_large":   "Berkas yang diunggah terlalu besar.",
		"internal":           "Terjadi kesalahan.",
		"not_found":          "Tidak ditemukan.",
		"history_disabled":   "Riwayat prediksi tidak diaktifkan.",
	},
}

func message(locale, code string) string {
	if m, ok := messages[locale]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages["en"][code]; ok {
		return s
	}
	return code
}
