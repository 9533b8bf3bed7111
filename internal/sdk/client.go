package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Client calls the platform's HTTP API with one source's credentials.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type resultEnvelope struct {
	Data Result `json:"data"`
}

type albumTrackPayload struct {
	Metadata TrackMetadata `json:"metadata"`
	Audio    string        `json:"audio_field"`
	Preview  string        `json:"preview_field,omitempty"`
}

// UploadTrack creates a track from audio, optional preview and cover art.
func (c *Client) UploadTrack(ctx context.Context, req UploadTrackRequest) (Result, error) {
	form := newForm()
	form.json("metadata", req.Metadata)
	form.file("audio", req.Audio)
	if req.Preview != nil {
		form.file("preview", *req.Preview)
	}
	form.file("cover_art", req.Cover)
	return c.sendForm(ctx, http.MethodPost, c.userPath(req.UserID, "tracks"), form)
}

// UpdateTrack replaces a track's metadata.
func (c *Client) UpdateTrack(ctx context.Context, req UpdateTrackRequest) (Result, error) {
	return c.sendJSON(ctx, http.MethodPut, c.userPath(req.UserID, "tracks", req.TrackID), req.Metadata)
}

// DeleteTrack removes a track.
func (c *Client) DeleteTrack(ctx context.Context, userID, trackID string) (Result, error) {
	return c.sendJSON(ctx, http.MethodDelete, c.userPath(userID, "tracks", trackID), nil)
}

// UploadAlbum creates an album with all of its tracks in one call.
func (c *Client) UploadAlbum(ctx context.Context, req UploadAlbumRequest) (Result, error) {
	form := newForm()
	form.json("metadata", req.Metadata)
	tracks := make([]albumTrackPayload, 0, len(req.Tracks))
	for i, track := range req.Tracks {
		p := albumTrackPayload{Metadata: track.Metadata, Audio: fmt.Sprintf("audio_%d", i)}
		form.file(p.Audio, track.Audio)
		if track.Preview != nil {
			p.Preview = fmt.Sprintf("preview_%d", i)
			form.file(p.Preview, *track.Preview)
		}
		tracks = append(tracks, p)
	}
	form.json("tracks", tracks)
	form.file("cover_art", req.Cover)
	return c.sendForm(ctx, http.MethodPost, c.userPath(req.UserID, "albums"), form)
}

// UpdateAlbum replaces an album's metadata.
func (c *Client) UpdateAlbum(ctx context.Context, req UpdateAlbumRequest) (Result, error) {
	return c.sendJSON(ctx, http.MethodPut, c.userPath(req.UserID, "albums", req.AlbumID), req.Metadata)
}

// DeleteAlbum removes an album.
func (c *Client) DeleteAlbum(ctx context.Context, userID, albumID string) (Result, error) {
	return c.sendJSON(ctx, http.MethodDelete, c.userPath(userID, "albums", albumID), nil)
}

func (c *Client) userPath(userID string, parts ...string) string {
	p := c.baseURL + "/v1/users/" + url.PathEscape(userID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

type multipartForm struct {
	body   *bytes.Buffer
	writer *multipart.Writer
	err    error
}

func newForm() *multipartForm {
	body := &bytes.Buffer{}
	return &multipartForm{body: body, writer: multipart.NewWriter(body)}
}

func (f *multipartForm) json(field string, v any) {
	if f.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.err = fmt.Errorf("failed to encode %s: %w", field, err)
		return
	}
	if err := f.writer.WriteField(field, string(data)); err != nil {
		f.err = fmt.Errorf("failed to write %s field: %w", field, err)
	}
}

func (f *multipartForm) file(field string, file File) {
	if f.err != nil {
		return
	}
	part, err := f.writer.CreateFormFile(field, file.Name)
	if err != nil {
		f.err = fmt.Errorf("failed to create form file: %w", err)
		return
	}
	if _, err := part.Write(file.Data); err != nil {
		f.err = fmt.Errorf("failed to copy file: %w", err)
	}
}

func (c *Client) sendForm(ctx context.Context, method, target string, form *multipartForm) (Result, error) {
	if form.err != nil {
		return Result{}, form.err
	}
	if err := form.writer.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return c.do(ctx, method, target, form.writer.FormDataContentType(), form.body)
}

func (c *Client) sendJSON(ctx context.Context, method, target string, payload any) (Result, error) {
	if payload == nil {
		return c.do(ctx, method, target, "", nil)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, method, target, "application/json", bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, target, contentType string, body io.Reader) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-API-Secret", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var env resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}
