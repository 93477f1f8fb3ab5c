package gameservers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	defaultAPIURL   = "https://api.igdb.com/v4"
	defaultImageURL = "https://images.igdb.com/igdb/image/upload/t_cover_big"
)

// CoverFetcher looks up game cover art on IGDB and stores images locally.
// IGDB authenticates through Twitch client credentials.
type CoverFetcher struct {
	clientID     string
	clientSecret string
	dir          string
	log          *zap.Logger
	httpClient   *http.Client

	tokenURL string
	apiURL   string
	imageURL string
}

// NewCoverFetcher creates a fetcher saving images under dir.
func NewCoverFetcher(clientID, clientSecret, dir string, log *zap.Logger) *CoverFetcher {
	return &CoverFetcher{
		clientID:     clientID,
		clientSecret: clientSecret,
		dir:          dir,
		log:          log,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tokenURL:     defaultTokenURL,
		apiURL:       defaultAPIURL,
		imageURL:     defaultImageURL,
	}
}

// Enabled reports whether credentials were configured.
func (f *CoverFetcher) Enabled() bool {
	return f != nil && f.clientID != "" && f.clientSecret != ""
}

// Token obtains a Twitch OAuth token for the IGDB API.
func (f *CoverFetcher) Token(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("client_id", f.clientID)
	params.Set("client_secret", f.clientSecret)
	params.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get oauth token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth token request returned status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return token.AccessToken, nil
}

func (f *CoverFetcher) query(ctx context.Context, token, endpoint, body string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL+endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build igdb request: %w", err)
	}
	req.Header.Set("Client-ID", f.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("igdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("igdb request returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Fetch finds and downloads a cover for the named game. Returns an empty
// path, without error, when no cover exists.
func (f *CoverFetcher) Fetch(ctx context.Context, token, gameName string) (string, error) {
	var games []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	q := fmt.Sprintf(`search %q; fields id, name; limit 5;`, gameName)
	if err := f.query(ctx, token, "/games", q, &games); err != nil {
		return "", err
	}
	if len(games) == 0 {
		return "", nil
	}

	var covers []struct {
		ImageID string `json:"image_id"`
		Game    int64  `json:"game"`
	}
	q = fmt.Sprintf(`where game = %d; fields image_id, game; limit 1;`, games[0].ID)
	if err := f.query(ctx, token, "/covers", q, &covers); err != nil {
		return "", err
	}
	if len(covers) == 0 || covers[0].ImageID == "" {
		return "", nil
	}

	return f.download(ctx, covers[0].ImageID, gameName)
}

// download saves the cover image and returns its serving path.
func (f *CoverFetcher) download(ctx context.Context, imageID, gameName string) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cover dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.jpg", safeName(gameName), shortID(imageID))
	path := filepath.Join(f.dir, filename)
	serving := "/static/images/" + filename

	if _, err := os.Stat(path); err == nil {
		return serving, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.imageURL+"/"+imageID+".jpg", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create cover file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}
	return serving, nil
}

// Remove deletes a previously downloaded cover file.
func (f *CoverFetcher) Remove(coverPath string) {
	if coverPath == "" {
		return
	}
	path := filepath.Join(f.dir, filepath.Base(coverPath))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.log.Warn("failed to delete cover file", zap.String("path", path), zap.Error(err))
	}
}

func safeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func shortID(imageID string) string {
	if len(imageID) > 8 {
		return imageID[:8]
	}
	return imageID
}
