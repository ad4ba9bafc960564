package playlist

import "github.com/glebovdev/webradio/internal/station"

// Default is written to the config directory on first start.
func Default() *Playlist {
	return &Playlist{
		Name: "Default",
		Stations: []station.Station{
			{Title: "SomaFM Groove Salad", URL: "https://ice1.somafm.com/groovesalad-128-mp3"},
			{Title: "SomaFM Drone Zone", URL: "https://ice1.somafm.com/dronezone-128-aac"},
			{Title: "SomaFM Secret Agent", URL: "https://ice1.somafm.com/secretagent-128-mp3"},
			{Title: "SomaFM Indie Pop Rocks!", URL: "https://ice1.somafm.com/indiepop-128-mp3"},
			{Title: "SomaFM DEF CON Radio", URL: "https://ice1.somafm.com/defcon-128-mp3"},
			{Title: "SomaFM Lush", URL: "https://ice1.somafm.com/lush-128-aac"},
		},
	}
}
