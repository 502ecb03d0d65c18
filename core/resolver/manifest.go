package resolver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparsable 响应不是任何可识别的格式
var ErrUnparsable = errors.New("unparsable response")

// 后端响应中可能出现的字段，兼容直链列表、网易云风格的 data 数组以及 base64 manifest
type payload struct {
	Code     *int            `json:"code"`
	Msg      string          `json:"msg"`
	URLs     []string        `json:"urls"`
	URL      string          `json:"url"`
	Manifest string          `json:"manifest"`
	Data     json.RawMessage `json:"data"`
}

// ExtractURL 从后端响应体中提取可播放地址
func ExtractURL(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrUnparsable)
	}

	switch trimmed[0] {
	case '{':
		var p payload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		return fromPayload(p, 0)
	case '[':
		return fromList(trimmed)
	}

	// 整个响应体就是 base64 manifest
	return decodeManifest(string(trimmed))
}

func fromPayload(p payload, depth int) (string, error) {
	if p.Code != nil && *p.Code != 200 && *p.Code != 0 {
		return "", fmt.Errorf("%w: backend code %d %s", ErrUnparsable, *p.Code, p.Msg)
	}
	if u := firstNonEmpty(p.URLs); u != "" {
		return u, nil
	}
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Manifest != "" {
		return decodeManifest(p.Manifest)
	}

	data := bytes.TrimSpace(p.Data)
	if len(data) > 0 && depth == 0 {
		switch data[0] {
		case '[':
			return fromList(data)
		case '{':
			var inner payload
			if err := json.Unmarshal(data, &inner); err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnparsable, err)
			}
			return fromPayload(inner, depth+1)
		}
	}
	return "", fmt.Errorf("%w: no url in payload", ErrUnparsable)
}

// fromList 处理 ["url", ...] 或 [{"url": ...}, ...]
func fromList(raw []byte) (string, error) {
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		if u := firstNonEmpty(plain); u != "" {
			return u, nil
		}
		return "", fmt.Errorf("%w: empty url list", ErrUnparsable)
	}

	var items []payload
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	for _, item := range items {
		if u, err := fromPayload(item, 1); err == nil {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: no url in list", ErrUnparsable)
}

func firstNonEmpty(urls []string) string {
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if out, err := enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: not base64", ErrUnparsable)
}

// decodeManifest 解码 base64 manifest，支持 JSON（urls 列表）与 DASH（MPD XML）
func decodeManifest(encoded string) (string, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return "", err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty manifest", ErrUnparsable)
	}

	switch raw[0] {
	case '{':
		var m struct {
			URLs []string `json:"urls"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return "", fmt.Errorf("%w: manifest json: %v", ErrUnparsable, err)
		}
		if u := firstNonEmpty(m.URLs); u != "" {
			return u, nil
		}
		return "", fmt.Errorf("%w: manifest has no urls", ErrUnparsable)
	case '<':
		return extractFromDASH(raw)
	}
	return "", fmt.Errorf("%w: unknown manifest format", ErrUnparsable)
}

type segmentTemplate struct {
	Initialization string `xml:"initialization,attr"`
	Media          string `xml:"media,attr"`
	StartNumber    string `xml:"startNumber,attr"`
}

type representation struct {
	ID       string           `xml:"id,attr"`
	BaseURL  string           `xml:"BaseURL"`
	Template *segmentTemplate `xml:"SegmentTemplate"`
}

type adaptationSet struct {
	BaseURL         string           `xml:"BaseURL"`
	Template        *segmentTemplate `xml:"SegmentTemplate"`
	Representations []representation `xml:"Representation"`
}

type period struct {
	BaseURL string          `xml:"BaseURL"`
	Sets    []adaptationSet `xml:"AdaptationSet"`
}

type mpd struct {
	BaseURL string   `xml:"BaseURL"`
	Periods []period `xml:"Period"`
}

// 模板候选：模板本身、所属 Representation ID 以及逐级的 BaseURL
type templateRef struct {
	tmpl  *segmentTemplate
	repID string
	bases []string
}

var (
	numberPattern   = regexp.MustCompile(`\$Number(%0(\d+)d)?\$`)
	audioURLPattern = regexp.MustCompile(`https?://[^\s"'<>]+?\.(?:flac|mp3|m4a|mp4|aac|ogg|opus|wav)(?:\?[^\s"'<>]*)?`)
)

// extractFromDASH 按优先级提取：initialization 整文件地址 → 首个 media 分片 → 扫描音频直链
func extractFromDASH(raw []byte) (string, error) {
	var doc mpd
	if err := xml.Unmarshal(raw, &doc); err == nil {
		refs := collectTemplates(doc)

		for _, ref := range refs {
			if ref.tmpl.Initialization == "" {
				continue
			}
			initURL := strings.ReplaceAll(ref.tmpl.Initialization, "$RepresentationID$", ref.repID)
			if u, ok := absolute(ref.bases, initURL); ok {
				return u, nil
			}
		}

		for _, ref := range refs {
			if ref.tmpl.Media == "" {
				continue
			}
			media := substituteNumber(ref.tmpl.Media, ref.tmpl.StartNumber)
			media = strings.ReplaceAll(media, "$RepresentationID$", ref.repID)
			if u, ok := absolute(ref.bases, media); ok {
				return u, nil
			}
		}
	}

	text := strings.ReplaceAll(string(raw), "&amp;", "&")
	if u := audioURLPattern.FindString(text); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("%w: no playable url in DASH manifest", ErrUnparsable)
}

func collectTemplates(doc mpd) []templateRef {
	var refs []templateRef
	for _, p := range doc.Periods {
		for _, set := range p.Sets {
			bases := []string{doc.BaseURL, p.BaseURL, set.BaseURL}
			for _, rep := range set.Representations {
				tmpl := rep.Template
				if tmpl == nil {
					tmpl = set.Template
				}
				if tmpl == nil {
					continue
				}
				refs = append(refs, templateRef{
					tmpl:  tmpl,
					repID: rep.ID,
					bases: append(append([]string{}, bases...), rep.BaseURL),
				})
			}
			if len(set.Representations) == 0 && set.Template != nil {
				refs = append(refs, templateRef{tmpl: set.Template, bases: bases})
			}
		}
	}
	return refs
}

// substituteNumber 将 $Number$ / $Number%05d$ 替换为起始分片序号
func substituteNumber(media, startNumber string) string {
	n := 1
	if startNumber != "" {
		if v, err := strconv.Atoi(startNumber); err == nil {
			n = v
		}
	}
	return numberPattern.ReplaceAllStringFunc(media, func(m string) string {
		sub := numberPattern.FindStringSubmatch(m)
		if sub[2] != "" {
			width, _ := strconv.Atoi(sub[2])
			return fmt.Sprintf("%0*d", width, n)
		}
		return strconv.Itoa(n)
	})
}

// absolute 依次应用 BaseURL 链解析相对地址，结果必须是 http(s) 绝对地址
func absolute(bases []string, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	chain := append(append([]string{}, bases...), ref)
	var cur *url.URL
	for _, b := range chain {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		u, err := url.Parse(b)
		if err != nil {
			return "", false
		}
		if cur == nil {
			cur = u
		} else {
			cur = cur.ResolveReference(u)
		}
	}
	if cur == nil || (cur.Scheme != "http" && cur.Scheme != "https") || cur.Host == "" {
		return "", false
	}
	return cur.String(), true
}
