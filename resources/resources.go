package resources

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteCounter counts the number of bytes written to it, and every 10 seconds,
// logs how far along the transfer is.
type WriteCounter struct {
	Total    uint64
	Last     time.Time
	Reported bool
	Path     string
	Size     uint64
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	if time.Since(wc.Last).Seconds() > 10 {
		wc.Reported = true
		wc.Last = time.Now()
		log.Printf("Downloading %s... %s / %s completed.",
			wc.Path, humanize.Bytes(wc.Total), humanize.Bytes(wc.Size))
	}
	return n, nil
}

// FetchHTTP
// Fetch a resource from a remote HTTP server with optional bearer token auth.
func FetchHTTP(uri string, auth string) (io.ReadCloser, error) {
	req, reqErr := http.NewRequest("GET", uri, nil)
	if reqErr != nil {
		return nil, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return nil, remoteErr
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP status code %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SizeHTTP
// Get the size of a resource from a remote HTTP server, zero when the server
// does not say.
func SizeHTTP(uri string, auth string) (uint64, error) {
	req, reqErr := http.NewRequest("HEAD", uri, nil)
	if reqErr != nil {
		return 0, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return 0, remoteErr
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP status code %d", resp.StatusCode)
	}
	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	return size, nil
}

// IsURL reports whether location is an absolute http(s) URL rather than a
// local path.
func IsURL(location string) bool {
	u, err := url.ParseRequestURI(location)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch
// Opens location, which is either a local path or an http(s) URL. Remote
// resources are read fully, logging transfer progress, so the caller gets the
// complete body or an error.
func Fetch(location string) ([]byte, error) {
	if !IsURL(location) {
		if _, err := os.Stat(location); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s does not exist", location)
		}
		return os.ReadFile(location)
	}
	size, _ := SizeHTTP(location, os.Getenv("GITTABLES_HTTP_TOKEN"))
	body, err := FetchHTTP(location, os.Getenv("GITTABLES_HTTP_TOKEN"))
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve `%s`: %w", location, err)
	}
	defer body.Close()
	counter := &WriteCounter{
		Last: time.Now(),
		Path: location,
		Size: size,
	}
	data, err := io.ReadAll(io.TeeReader(body, counter))
	if err != nil {
		return nil, fmt.Errorf("error downloading '%s': %w", location, err)
	}
	log.Printf("Downloaded %s... %s completed.", location,
		humanize.Bytes(uint64(len(data))))
	return data, nil
}
