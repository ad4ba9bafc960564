package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"simple URL", "http://example.com/list.m3u"},
		{"URL with query params", "http://example.com/list.m3u?token=abc"},
		{"empty string", ""},
		{"https URL", "https://somafm.com/groovesalad130.pls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hashURL(tt.url)

			if len(result) != 32 {
				t.Errorf("hashURL(%q) length = %d, want 32", tt.url, len(result))
			}

			for _, c := range result {
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					t.Errorf("hashURL(%q) contains non-hex character: %c", tt.url, c)
				}
			}
		})
	}

	if hashURL("http://a") == hashURL("http://b") {
		t.Error("Different URLs produced same hash")
	}
}

// age moves a cached file's modification time into the past.
func age(t *testing.T, c *Cache, url string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	if err := os.Chtimes(c.path(url), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestSaveAndGetPlaylist(t *testing.T) {
	cache := &Cache{baseDir: t.TempDir(), expiry: DefaultExpiry}

	url := "http://example.com/radios.m3u"
	body := []byte("#EXTM3U\nhttp://a.example.com/\n")

	if err := cache.SavePlaylist(url, body); err != nil {
		t.Fatalf("SavePlaylist() error = %v", err)
	}

	got, ok := cache.GetPlaylist(url)
	if !ok {
		t.Fatal("GetPlaylist() missed a fresh entry")
	}
	if string(got) != string(body) {
		t.Errorf("GetPlaylist() = %q, want %q", got, body)
	}

	if _, ok := cache.GetPlaylist("http://example.com/other.m3u"); ok {
		t.Error("GetPlaylist() hit for a URL never saved")
	}
}

func TestGetPlaylistExpired(t *testing.T) {
	cache := &Cache{baseDir: t.TempDir(), expiry: time.Hour}
	url := "http://example.com/expired.pls"

	if err := cache.SavePlaylist(url, []byte("[playlist]")); err != nil {
		t.Fatal(err)
	}
	age(t, cache, url, 2*time.Hour)

	if _, ok := cache.GetPlaylist(url); ok {
		t.Error("GetPlaylist() returned an expired entry")
	}
	if _, err := os.Stat(cache.path(url)); !os.IsNotExist(err) {
		t.Error("Expired cache file should have been deleted")
	}
}

func TestCleanExpired(t *testing.T) {
	tmpDir := t.TempDir()
	cache := &Cache{baseDir: tmpDir, expiry: time.Hour}

	stale := []string{"http://example.com/1.m3u", "http://example.com/2.m3u"}
	fresh := "http://example.com/3.m3u"

	for _, url := range append(stale, fresh) {
		if err := cache.SavePlaylist(url, []byte(url)); err != nil {
			t.Fatalf("SavePlaylist(%q) error = %v", url, err)
		}
	}
	for _, url := range stale {
		age(t, cache, url, 3*time.Hour)
	}

	if err := cache.CleanExpired(); err != nil {
		t.Fatalf("CleanExpired() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(tmpDir, PlaylistSubdir))
	if err != nil {
		t.Fatalf("Failed to read playlist directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("CleanExpired() left %d files, want 1", len(entries))
	}
	if _, ok := cache.GetPlaylist(fresh); !ok {
		t.Error("CleanExpired() removed a valid entry")
	}
}

func TestCleanExpiredNonExistentDirectory(t *testing.T) {
	cache := &Cache{baseDir: t.TempDir(), expiry: DefaultExpiry}

	if err := cache.CleanExpired(); err != nil {
		t.Errorf("CleanExpired() should not error on non-existent directory, got %v", err)
	}
}

func TestGetCacheDir(t *testing.T) {
	dir, err := GetCacheDir()
	if err != nil {
		t.Fatalf("GetCacheDir() error = %v", err)
	}

	if !filepath.IsAbs(dir) {
		t.Errorf("GetCacheDir() = %q, want absolute path", dir)
	}

	if filepath.Base(dir) != AppName {
		t.Errorf("GetCacheDir() directory name = %q, want %q", filepath.Base(dir), AppName)
	}
}

func TestNewCache(t *testing.T) {
	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	if cache.baseDir == "" {
		t.Error("NewCache() cache.baseDir is empty")
	}
	if cache.expiry != DefaultExpiry {
		t.Errorf("NewCache() cache.expiry = %v, want %v", cache.expiry, DefaultExpiry)
	}
}
