package models

// Video summarises a single video search result.
type Video struct {
	Title        string `json:"title"`
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}
