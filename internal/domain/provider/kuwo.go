package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type kuwoSearchItem struct {
	MusicRID    string `json:"MUSICRID"`
	SongName    string `json:"SONGNAME"`
	Artist      string `json:"ARTIST"`
	Album       string `json:"ALBUM"`
	WebAlbumPic string `json:"web_albumpic_short"`
	Pic         string `json:"pic"`
	HtsMVPic    string `json:"hts_MVPIC"`
	MVPic       string `json:"MVPIC"`
}

type kuwoSearchResponse struct {
	AbsList []kuwoSearchItem `json:"abslist"`
}

type kuwoPlaylistItem struct {
	ID     stringOrNumber `json:"id"`
	Name   string         `json:"name"`
	Artist string         `json:"artist"`
	Album  string         `json:"album"`
	kuwoSearchItem
}

type kuwoPlaylistResponse struct {
	Result    string             `json:"result"`
	MusicList []kuwoPlaylistItem `json:"musiclist"`
}

// kuwoCover 封面字段的兜底链：短地址 → pic → hts_MVPIC → MVPIC。
func kuwoCover(item kuwoSearchItem) string {
	if short := strings.TrimSpace(item.WebAlbumPic); short != "" {
		if strings.HasPrefix(short, "http://") || strings.HasPrefix(short, "https://") || strings.HasPrefix(short, "//") {
			return normalizeMediaURL(short)
		}
		return "https://img4.kuwo.cn/star/albumcover/" + strings.TrimLeft(short, "/")
	}
	if pic := strings.TrimSpace(item.Pic); pic != "" {
		return normalizeMediaURL(pic)
	}
	if hts := strings.TrimSpace(item.HtsMVPic); hts != "" {
		return normalizeMediaURL(hts)
	}
	if mv := strings.TrimSpace(item.MVPic); mv != "" {
		return "https://img1.kuwo.cn/wmvpic/" + strings.TrimLeft(mv, "/")
	}
	return ""
}

func (a *Tier1) kuwoSearch(ctx context.Context, keyword string, page, limit int) ([]SongRecord, error) {
	// kwplayer 客户端参数集，页码从 0 开始
	query := url.Values{
		"client":             {"kt"},
		"all":                {keyword},
		"pn":                 {strconv.Itoa(page - 1)},
		"rn":                 {strconv.Itoa(limit)},
		"uid":                {"794762570"},
		"ver":                {"kwplayer_ar_9.2.2.1"},
		"vipver":             {"1"},
		"show_copyright_off": {"1"},
		"newver":             {"1"},
		"ft":                 {"music"},
		"cluster":            {"0"},
		"strategy":           {"2012"},
		"encoding":           {"utf8"},
		"rformat":            {"json"},
		"vermerge":           {"1"},
		"mobi":               {"1"},
		"issubtitle":         {"1"},
	}

	var resp kuwoSearchResponse
	if err := fetchJSON(ctx, a.client, "tier1.kuwo.search", http.MethodGet,
		a.kuwoSearchBase+"/r.s", map[string]string{"User-Agent": "Mozilla/5.0"}, query, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]SongRecord, 0, len(resp.AbsList))
	for _, item := range resp.AbsList {
		name := item.SongName
		if name == "" {
			name = unknownSongName
		}
		records = append(records, SongRecord{
			ID:             strings.TrimPrefix(item.MusicRID, "MUSIC_"),
			Name:           name,
			Artist:         strings.ReplaceAll(item.Artist, "&", ", "),
			Album:          item.Album,
			Cover:          kuwoCover(item),
			SourcePlatform: "kuwo",
		})
	}
	return records, nil
}

func (a *Tier1) kuwoPlaylist(ctx context.Context, id string) ([]SongRecord, error) {
	query := url.Values{
		"op":       {"getlistinfo"},
		"pid":      {id},
		"pn":       {"0"},
		"rn":       {"1000"},
		"encode":   {"utf8"},
		"keyset":   {"pl2012"},
		"identity": {"kuwo"},
		"pcmp4":    {"1"},
		"vipver":   {"MUSIC_9.0.5.0_W1"},
		"newver":   {"1"},
	}

	var resp kuwoPlaylistResponse
	if err := fetchJSON(ctx, a.client, "tier1.kuwo.playlist", http.MethodGet,
		a.kuwoPlaylistBase+"/pl.svc", map[string]string{"User-Agent": "Mozilla/5.0"}, query, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Result != "ok" {
		return []SongRecord{}, nil
	}

	records := make([]SongRecord, 0, len(resp.MusicList))
	for _, item := range resp.MusicList {
		name := item.Name
		if name == "" {
			name = unknownSongName
		}
		records = append(records, SongRecord{
			ID:             item.ID.String(),
			Name:           name,
			Artist:         strings.ReplaceAll(item.Artist, "&", ", "),
			Album:          item.Album,
			Cover:          kuwoCover(item.kuwoSearchItem),
			SourcePlatform: "kuwo",
		})
	}
	return records, nil
}
