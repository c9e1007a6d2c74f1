package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// 网易云走网页版接口，必须带 Referer/UA 才不会被拦。
var neteaseWebHeaders = map[string]string{
	"Referer":    "https://music.163.com/",
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
}

type neteaseArtist struct {
	Name string `json:"name"`
}

type neteaseAlbum struct {
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

type neteaseSong struct {
	ID      stringOrNumber  `json:"id"`
	Name    string          `json:"name"`
	Artists []neteaseArtist `json:"artists"`
	Album   neteaseAlbum    `json:"album"`
}

type neteaseSearchResponse struct {
	Result struct {
		Songs []neteaseSong `json:"songs"`
	} `json:"result"`
}

type neteasePlaylistResponse struct {
	Result struct {
		Tracks []neteaseSong `json:"tracks"`
	} `json:"result"`
}

func joinArtists[T any](items []T, name func(T) string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if n := name(item); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}

func normalizeNeteaseSong(item neteaseSong) SongRecord {
	name := item.Name
	if name == "" {
		name = unknownSongName
	}
	return SongRecord{
		ID:             item.ID.String(),
		Name:           name,
		Artist:         joinArtists(item.Artists, func(a neteaseArtist) string { return a.Name }),
		Album:          item.Album.Name,
		Cover:          normalizeMediaURL(item.Album.PicURL),
		SourcePlatform: "netease",
	}
}

func (a *Tier1) neteaseSearch(ctx context.Context, keyword string, page, limit int) ([]SongRecord, error) {
	query := url.Values{
		"s":      {keyword},
		"type":   {"1"},
		"offset": {strconv.Itoa((page - 1) * limit)},
		"limit":  {strconv.Itoa(limit)},
	}

	var resp neteaseSearchResponse
	if err := fetchJSON(ctx, a.client, "tier1.netease.search", http.MethodGet,
		a.neteaseBase+"/api/search/get/web", neteaseWebHeaders, query, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]SongRecord, 0, len(resp.Result.Songs))
	for _, item := range resp.Result.Songs {
		records = append(records, normalizeNeteaseSong(item))
	}
	return records, nil
}

func (a *Tier1) neteasePlaylist(ctx context.Context, id string) ([]SongRecord, error) {
	query := url.Values{
		"id": {id},
		"n":  {"100000"},
		"s":  {"8"},
	}

	var resp neteasePlaylistResponse
	if err := fetchJSON(ctx, a.client, "tier1.netease.playlist", http.MethodGet,
		a.neteaseBase+"/api/playlist/detail", neteaseWebHeaders, query, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]SongRecord, 0, len(resp.Result.Tracks))
	for _, item := range resp.Result.Tracks {
		records = append(records, normalizeNeteaseSong(item))
	}
	return records, nil
}
