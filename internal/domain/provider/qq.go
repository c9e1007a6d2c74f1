package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type qqSinger struct {
	Name string `json:"name"`
}

type qqAlbum struct {
	Name     string `json:"name"`
	Mid      string `json:"mid"`
	AlbumMid string `json:"albummid"`
}

type qqSong struct {
	Mid    string     `json:"mid"`
	Name   string     `json:"name"`
	Title  string     `json:"title"`
	Singer []qqSinger `json:"singer"`
	Album  qqAlbum    `json:"album"`
}

type qqSearchResponse struct {
	Req struct {
		Data struct {
			Body struct {
				Song struct {
					List []qqSong `json:"list"`
				} `json:"song"`
			} `json:"body"`
		} `json:"data"`
	} `json:"req"`
}

type qqPlaylistResponse struct {
	CDList []struct {
		SongList []qqSong `json:"songlist"`
	} `json:"cdlist"`
}

// qqAlbumCover 按专辑 mid 拼出固定尺寸的封面地址。
func qqAlbumCover(album qqAlbum) string {
	mid := album.Mid
	if mid == "" {
		mid = album.AlbumMid
	}
	if mid == "" {
		return ""
	}
	return "https://y.qq.com/music/photo_new/T002R300x300M000" + mid + ".jpg"
}

func normalizeQQSong(item qqSong, preferTitle bool) SongRecord {
	name := item.Name
	if preferTitle {
		name = item.Title
	}
	if name == "" {
		name = unknownSongName
	}
	return SongRecord{
		ID:             item.Mid,
		Name:           name,
		Artist:         joinArtists(item.Singer, func(s qqSinger) string { return s.Name }),
		Album:          item.Album.Name,
		Cover:          normalizeMediaURL(qqAlbumCover(item.Album)),
		SourcePlatform: "qq",
	}
}

func (a *Tier1) qqSearch(ctx context.Context, keyword string, page, limit int) ([]SongRecord, error) {
	// 桌面端搜索协议，envelope 固定
	body := map[string]any{
		"comm": map[string]any{
			"cv":         4747474,
			"ct":         24,
			"format":     "json",
			"inCharset":  "utf-8",
			"outCharset": "utf-8",
			"uin":        0,
		},
		"req": map[string]any{
			"method": "DoSearchForQQMusicDesktop",
			"module": "music.search.SearchCgiService",
			"param": map[string]any{
				"query":        keyword,
				"page_num":     strconv.Itoa(page),
				"num_per_page": strconv.Itoa(limit),
			},
		},
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Referer":      "https://y.qq.com/",
	}

	var resp qqSearchResponse
	if err := fetchJSON(ctx, a.client, "tier1.qq.search", http.MethodPost,
		a.qqSearchBase+"/cgi-bin/musicu.fcg", headers, nil, body, &resp); err != nil {
		return nil, err
	}

	songs := resp.Req.Data.Body.Song.List
	records := make([]SongRecord, 0, len(songs))
	for _, item := range songs {
		records = append(records, normalizeQQSong(item, false))
	}
	return records, nil
}

func (a *Tier1) qqPlaylist(ctx context.Context, id string) ([]SongRecord, error) {
	query := url.Values{
		"type":        {"1"},
		"json":        {"1"},
		"utf8":        {"1"},
		"onlysong":    {"0"},
		"new_format":  {"1"},
		"disstid":     {id},
		"loginUin":    {"0"},
		"hostUin":     {"0"},
		"format":      {"json"},
		"inCharset":   {"utf8"},
		"outCharset":  {"utf-8"},
		"notice":      {"0"},
		"platform":    {"yqq.json"},
		"needNewCode": {"0"},
	}

	headers := map[string]string{
		"Origin":  "https://y.qq.com",
		"Referer": "https://y.qq.com/",
	}

	var resp qqPlaylistResponse
	if err := fetchJSON(ctx, a.client, "tier1.qq.playlist", http.MethodGet,
		a.qqPlaylistBase+"/qzone/fcg-bin/fcg_ucc_getcdinfo_byids_cp.fcg", headers, query, nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.CDList) == 0 {
		return []SongRecord{}, nil
	}
	songs := resp.CDList[0].SongList
	records := make([]SongRecord, 0, len(songs))
	for _, item := range songs {
		// 歌单接口里歌名在 title 字段
		records = append(records, normalizeQQSong(item, true))
	}
	return records, nil
}
