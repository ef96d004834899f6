// Package feed は公開済み記事のRSS 2.0フィードを生成する。
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/hitoshi/blogdesk/internal/model"
)

// Site はチャンネル情報。
type Site struct {
	Title       string
	Description string
	BaseURL     string // 末尾のスラッシュなし
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description,omitempty"`
	Author      string  `xml:"author,omitempty"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// PostURL は記事の公開URLを返す。
func PostURL(baseURL, slug string) string {
	return baseURL + "/blog/" + slug
}

// BuildRSS は記事一覧からRSS 2.0のXMLを生成する。
// 公開状態でない記事は含めない。pubDateは公開日時、未設定の場合は作成日時を使う。
func BuildRSS(site Site, posts []*model.BlogPost) ([]byte, error) {
	channel := rssChannel{
		Title:       site.Title,
		Link:        site.BaseURL,
		Description: site.Description,
		Language:    "ja",
		Items:       make([]rssItem, 0, len(posts)),
	}

	var latest time.Time
	for _, p := range posts {
		if p == nil || p.Status != model.PostStatusPublished {
			continue
		}

		published := publishedTime(p)
		if published.After(latest) {
			latest = published
		}

		link := PostURL(site.BaseURL, p.Slug)
		item := rssItem{
			Title:   p.Title,
			Link:    link,
			GUID:    rssGUID{IsPermaLink: true, Value: link},
			PubDate: published.UTC().Format(time.RFC1123Z),
		}
		if p.Excerpt != nil {
			item.Description = *p.Excerpt
		}
		if p.Author != nil {
			item.Author = *p.Author
		}
		channel.Items = append(channel.Items, item)
	}

	if !latest.IsZero() {
		channel.LastBuildDate = latest.UTC().Format(time.RFC1123Z)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(rssDocument{Version: "2.0", Channel: channel}); err != nil {
		return nil, fmt.Errorf("RSSの生成に失敗しました: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("RSSの生成に失敗しました: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func publishedTime(p *model.BlogPost) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}
