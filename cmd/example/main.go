// Command example walks through the drop API against a running
// hushd server: upload an object, fetch it back, attempt a delete
// with the wrong password, then delete it for real.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

const (
	Ciphertext     = "pretend this is ciphertext"
	Metadata       = `{"filename":"ZW5jcnlwdGVkLW5hbWU="}`
	DeletePassword = "example-delete-password"
)

type uploadResponse struct {
	Status string `json:"status"`
	FileID string `json:"fileid"`
}

type deleteResponse struct {
	FileID  string `json:"fileid"`
	Deleted bool   `json:"deleted"`
}

func upload(client *http.Client, baseURL string) (string, error) {
	form := url.Values{}
	form.Set("cryptofile", Ciphertext)
	form.Set("metadata", Metadata)
	form.Set("deletepassword", DeletePassword)

	resp, err := client.PostForm(baseURL+"/api/upload", form)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if ur.Status != "ok" {
		return "", fmt.Errorf("upload failed: %s", ur.Status)
	}
	return ur.FileID, nil
}

func fetch(client *http.Client, baseURL, fileID string) (string, error) {
	resp, err := client.Get(baseURL + "/api/file?fileid=" + url.QueryEscape(fileID))
	if err != nil {
		return "", fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read fetch response: %w", err)
	}
	return string(data), nil
}

func del(client *http.Client, baseURL, fileID, password string) (deleteResponse, int, error) {
	u := fmt.Sprintf("%s/api/delete?fileid=%s&deletepassword=%s",
		baseURL, url.QueryEscape(fileID), url.QueryEscape(password))

	resp, err := client.Get(u)
	if err != nil {
		return deleteResponse{}, 0, fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	var dr deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return deleteResponse{}, 0, fmt.Errorf("decode delete response: %w", err)
	}
	return dr, resp.StatusCode, nil
}

func run() error {
	baseURL := strings.TrimRight(getenv("HUSHD_URL", "http://localhost:8080"), "/")
	client := http.DefaultClient

	fileID, err := upload(client, baseURL)
	if err != nil {
		return err
	}
	slog.Info("Uploaded object", "fileid", fileID)

	body, err := fetch(client, baseURL, fileID)
	if err != nil {
		return err
	}
	if body != Ciphertext {
		return fmt.Errorf("fetched payload does not match upload")
	}
	slog.Info("Fetched payload back", "bytes", len(body))

	dr, status, err := del(client, baseURL, fileID, "not-the-password")
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized || dr.Deleted {
		return fmt.Errorf("delete with wrong password should be rejected, got status %d", status)
	}
	slog.Info("Delete with wrong password rejected", "status", status)

	dr, status, err = del(client, baseURL, fileID, DeletePassword)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !dr.Deleted {
		return fmt.Errorf("delete failed with status %d", status)
	}
	slog.Info("Deleted object", "fileid", fileID)

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("example failed", "error", err)
		os.Exit(1)
	}
}
