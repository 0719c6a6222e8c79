// Package media shells out to yt-dlp and ffmpeg for source acquisition.
//
// The downloader fetches uploaded captions, auto-generated subtitles, or the
// audio track of a remote video. The processor extracts and normalizes audio
// from local files and probes durations via ffprobe. Both accept an injected
// run function so tests never spawn real tools.
package media
