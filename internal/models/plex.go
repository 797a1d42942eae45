// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package models defines the raw Plex Media Server API structures consumed
// by the bridge.
//
// These structures mirror the JSON returned by the /status/sessions
// endpoint. They are transport-level types only; the bridge core works on
// normalized session snapshots (internal/session), never on these directly.
package models

// PlexSessionsResponse represents the top-level response from /status/sessions
type PlexSessionsResponse struct {
	MediaContainer PlexSessionsContainer `json:"MediaContainer"`
}

// PlexSessionsContainer wraps the active sessions array
type PlexSessionsContainer struct {
	Size     int           `json:"size"`     // Number of active sessions
	Metadata []PlexSession `json:"Metadata"` // Array of active session metadata
}

// PlexSession represents a single active playback session.
//
// Only the fields the bridge consumes are modeled. For music sessions
// (type "track") the Plex hierarchy maps as:
//   - Title: track title
//   - ParentTitle: album
//   - GrandparentTitle: artist
type PlexSession struct {
	// Session identification
	SessionKey string `json:"sessionKey"` // Unique session identifier
	RatingKey  string `json:"ratingKey"`  // Plex content identifier
	Key        string `json:"key"`        // Metadata key path

	// Content information
	Type             string `json:"type"`                       // "movie", "episode", "track"
	Title            string `json:"title"`                      // Track title
	GrandparentTitle string `json:"grandparentTitle,omitempty"` // Artist name
	ParentTitle      string `json:"parentTitle,omitempty"`      // Album name

	// Extended metadata
	Year        int    `json:"year,omitempty"`        // Release year
	Index       int    `json:"index,omitempty"`       // Track number within album
	ParentIndex int    `json:"parentIndex,omitempty"` // Disc number
	Thumb       string `json:"thumb,omitempty"`       // Artwork path (server-relative)
	Art         string `json:"art,omitempty"`         // Fallback artwork path

	// Playback state
	ViewOffset int64 `json:"viewOffset"` // Current playback position (milliseconds)
	Duration   int64 `json:"duration"`   // Total duration (milliseconds)

	// User watching this session
	User *PlexSessionUser `json:"User,omitempty"`

	// Device/client information
	Player *PlexSessionPlayer `json:"Player,omitempty"`

	// Media streams and quality info
	Media []PlexMedia `json:"Media,omitempty"`
}

// PlexSessionUser represents user information in active sessions
type PlexSessionUser struct {
	ID    int    `json:"id"`
	Title string `json:"title"` // Username
	Thumb string `json:"thumb"` // Avatar URL
}

// PlexSessionPlayer represents device/client information
type PlexSessionPlayer struct {
	Address   string `json:"address"`           // Client IP address
	Device    string `json:"device"`            // Device name (e.g., "iPhone", "Chrome")
	MachineID string `json:"machineIdentifier"` // Stable client identifier
	Platform  string `json:"platform"`          // Platform (e.g., "iOS", "Windows")
	Product   string `json:"product"`           // Client app (e.g., "Plex for iOS")
	State     string `json:"state"`             // Player state ("playing", "paused", "stopped")
	Title     string `json:"title"`             // Device friendly name
	Local     bool   `json:"local"`             // Local network connection
}

// PlexMedia represents media stream information (bitrate, codec)
type PlexMedia struct {
	ID            int    `json:"id"`
	Duration      int64  `json:"duration"`
	Bitrate       int    `json:"bitrate"` // Kbps
	AudioChannels int    `json:"audioChannels"`
	AudioCodec    string `json:"audioCodec"` // e.g., "flac", "mp3", "aac"
	Container     string `json:"container"`
}
