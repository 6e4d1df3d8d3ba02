package model

// Package model defines domain data structures used across the app: fetch
// results and their error kinds, media classification, and per-user usage
// statistics. Structures are transport-agnostic and carry no Telegram types.
