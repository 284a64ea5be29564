package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/domain"
	"github.com/remeh/sizedwaitgroup"
)

const (
	// ImagesDir is where downloads land, relative to the web root
	ImagesDir = "images"

	defaultPetTries    = 10
	defaultParallelism = 3
	maxImageBytes      = 10 << 20
)

// Pets that have an image API
var Pets = []string{"dog", "cat", "duck"}

var imageExtensions = []string{"jpg", "jpeg", "png", "gif"}

var (
	ErrUnknownPet    = errors.New("unknown pet")
	ErrMovieNotFound = errors.New("movie not found")
	ErrNoImage       = errors.New("no supported image")
)

// Endpoints are the third-party APIs the fetcher talks to
type Endpoints struct {
	Movie string
	Pets  map[string]string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Movie: "http://www.omdbapi.com/",
		Pets: map[string]string{
			"dog":  "https://dog.ceo/api/breeds/image/random",
			"cat":  "https://api.thecatapi.com/v1/images/search",
			"duck": "https://random-d.uk/api/v2/random",
		},
	}
}

// Fetcher looks up movie details and pet pictures and stores images under webRoot
type Fetcher struct {
	apiKey    string
	webRoot   string
	endpoints Endpoints
	client    *http.Client
	petTries  int
	parallel  int
}

type FetcherOption func(*Fetcher)

func WithEndpoints(e Endpoints) FetcherOption {
	return func(f *Fetcher) { f.endpoints = e }
}

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithPetTries bounds how many random pet images are tried before giving up
func WithPetTries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.petTries = n
		}
	}
}

func NewFetcher(apiKey, webRoot string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		apiKey:    apiKey,
		webRoot:   webRoot,
		endpoints: DefaultEndpoints(),
		client:    &http.Client{Timeout: 15 * time.Second},
		petTries:  defaultPetTries,
		parallel:  defaultParallelism,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchMovie looks a film up by title and year and downloads its poster.
// The OMDb fields are returned as sent, minus "Response", plus local_poster.
func (f *Fetcher) FetchMovie(ctx context.Context, ref domain.MovieRef) (map[string]any, error) {
	q := url.Values{}
	q.Set("apikey", f.apiKey)
	q.Set("t", ref.Title)
	q.Set("y", fmt.Sprint(ref.Year))
	uri := f.endpoints.Movie + "?" + q.Encode()

	var movie map[string]any
	if err := f.getJSON(ctx, uri, &movie); err != nil {
		return nil, err
	}
	if status, _ := movie["Response"].(string); status == "False" {
		reason, _ := movie["Error"].(string)
		return nil, fmt.Errorf("%w: %s (%v): %s", ErrMovieNotFound, ref.Title, ref.Year, reason)
	}
	delete(movie, "Response")

	poster, _ := movie["Poster"].(string)
	if strings.HasPrefix(poster, "http") {
		local, err := f.Download(ctx, poster)
		if err != nil {
			return nil, fmt.Errorf("poster for %s: %w", ref.Title, err)
		}
		movie["local_poster"] = local
	} else {
		movie["local_poster"] = nil
	}
	return movie, nil
}

// PetImageURL asks the pet API for random images until one has a supported extension
func (f *Fetcher) PetImageURL(ctx context.Context, pet string) (string, error) {
	uri, ok := f.endpoints.Pets[pet]
	if !ok {
		return "", fmt.Errorf("%w %q, must be one of %v", ErrUnknownPet, pet, Pets)
	}

	for range f.petTries {
		var body any
		if err := f.getJSON(ctx, uri, &body); err != nil {
			return "", err
		}
		img := imageURL(body)
		if isSupportedImage(img) {
			return img, nil
		}
		log.Printf("Skipping unsupported %s image %q", pet, img)
	}
	return "", fmt.Errorf("%w for %s after %d tries", ErrNoImage, pet, f.petTries)
}

// imageURL digs the image address out of a pet API reply. Some APIs answer
// with a list, some name the field "url" and others "message".
func imageURL(body any) string {
	if list, ok := body.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		body = list[0]
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	if u, ok := obj["url"].(string); ok {
		return u
	}
	u, _ := obj["message"].(string)
	return u
}

func isSupportedImage(u string) bool {
	if u == "" {
		return false
	}
	i := strings.LastIndex(u, ".")
	if i < 0 {
		return false
	}
	return slices.Contains(imageExtensions, strings.ToLower(u[i+1:]))
}

// DownloadPets fetches one image per pet in parallel and returns the local references
func (f *Fetcher) DownloadPets(ctx context.Context, pets []string) (map[string]string, error) {
	var (
		mu       sync.Mutex
		local    = make(map[string]string, len(pets))
		firstErr error
	)

	swg := sizedwaitgroup.New(f.parallel)
	for _, pet := range pets {
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		go func(pet string) {
			defer swg.Done()
			ref, err := f.downloadPet(ctx, pet)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			local[pet] = ref
		}(pet)
	}
	swg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return local, nil
}

func (f *Fetcher) downloadPet(ctx context.Context, pet string) (string, error) {
	img, err := f.PetImageURL(ctx, pet)
	if err != nil {
		return "", err
	}
	return f.Download(ctx, img)
}

// Download saves the resource at rawURL under <webRoot>/images, named after the
// last path segment, and returns the web path of the saved copy.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("no file name in %s", rawURL)
	}

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	dir := filepath.Join(f.webRoot, ImagesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", err
	}
	return path.Join(ImagesDir, name), nil
}

func (f *Fetcher) get(ctx context.Context, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	log.Printf("(Server) GET %s %d", redact(uri), resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", redact(uri), resp.StatusCode)
	}
	return resp, nil
}

func (f *Fetcher) getJSON(ctx context.Context, uri string, v any) error {
	resp, err := f.get(ctx, uri)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode reply from %s: %w", redact(uri), err)
	}
	return nil
}

// redact keeps the API key out of the logs
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "xxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
