package gapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// FolderMimeType marks a Drive file as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// uploadFields is the partial-response field mask requested on upload.
const uploadFields = "id,name,mimeType,webViewLink"

// Folder is a created Drive folder.
type Folder struct {
	ID   string
	Name string
}

// File is an uploaded Drive file.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Link     string `json:"webViewLink"`
}

// fileMetadata is the JSON metadata sent when creating a folder or file.
type fileMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// fileResponse mirrors the subset of the Drive files resource we read back.
type fileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	WebViewLink string `json:"webViewLink"`
}

// Drive creates folders and uploads files in a user's Drive.
type Drive struct {
	client *Client
}

// NewDrive binds a client to the Drive files API.
func NewDrive(client *Client) *Drive {
	return &Drive{client: client}
}

// storeErr converts an *APIError into a *StoreError for op; other errors pass through.
func storeErr(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &StoreError{Op: op, APIError: apiErr}
	}

	return err
}

// CreateFolder creates a folder named name. An empty parentID creates it at
// the top level of the user's Drive.
func (d *Drive) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	d.client.logger.Info("creating folder",
		slog.String("name", name),
		slog.String("parent_id", parentID),
	)

	meta := fileMetadata{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	bodyBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("gapi: marshaling create folder request: %w", err)
	}

	resp, err := d.client.Do(ctx, http.MethodPost, d.client.endpoints.Drive+"/files",
		"application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, storeErr("create folder", err)
	}
	defer resp.Body.Close()

	var fr fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("gapi: decoding create folder response: %w", err)
	}

	if fr.ID == "" {
		return nil, errors.New("gapi: create folder response has no id")
	}

	d.client.logger.Debug("folder created", slog.String("folder_id", fr.ID))

	return &Folder{ID: fr.ID, Name: fr.Name}, nil
}

// UploadFile uploads r as a file named name into parentID with a single
// multipart/related request (metadata part + media part). There is no
// chunking, resume or retry: a failure leaves no file behind for this call.
func (d *Drive) UploadFile(
	ctx context.Context, parentID, name, mimeType string, r io.Reader, size int64,
) (*File, error) {
	d.client.logger.Info("uploading file",
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	body, contentType, err := multipartBody(fileMetadata{Name: name, Parents: []string{parentID}}, mimeType, r)
	if err != nil {
		return nil, err
	}
	// Closing the reader unblocks the writer goroutine if the request is never sent.
	defer body.Close()

	q := url.Values{}
	q.Set("uploadType", "multipart")
	q.Set("fields", uploadFields)

	resp, err := d.client.Do(ctx, http.MethodPost, d.client.endpoints.Upload+"/files?"+q.Encode(), contentType, body)
	if err != nil {
		return nil, storeErr("upload", err)
	}
	defer resp.Body.Close()

	var fr fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("gapi: decoding upload response: %w", err)
	}

	if fr.ID == "" {
		return nil, errors.New("gapi: upload response has no id")
	}

	d.client.logger.Debug("upload complete",
		slog.String("file_id", fr.ID),
		slog.String("name", fr.Name),
	)

	return &File{ID: fr.ID, Name: fr.Name, MimeType: fr.MimeType, Link: fr.WebViewLink}, nil
}

// DeleteItem permanently deletes a file or folder (and its children).
func (d *Drive) DeleteItem(ctx context.Context, id string) error {
	d.client.logger.Info("deleting item", slog.String("item_id", id))

	resp, err := d.client.Do(ctx, http.MethodDelete, d.client.endpoints.Drive+"/files/"+url.PathEscape(id), "", nil)
	if err != nil {
		return storeErr("delete", err)
	}
	defer resp.Body.Close()

	return drain(resp)
}

// multipartBody builds a multipart/related body: a JSON metadata part
// followed by the media part. The media is streamed through a pipe so large
// attachments are not buffered in memory.
func multipartBody(meta fileMetadata, mimeType string, media io.Reader) (io.ReadCloser, string, error) {
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("gapi: marshaling upload metadata: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := "multipart/related; boundary=" + mw.Boundary()

	go func() {
		pw.CloseWithError(writeParts(mw, metaBytes, mimeType, media))
	}()

	return pr, contentType, nil
}

// writeParts writes both parts and closes the multipart writer.
func writeParts(mw *multipart.Writer, metaBytes []byte, mimeType string, media io.Reader) error {
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")

	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return fmt.Errorf("gapi: creating metadata part: %w", err)
	}

	if _, err := part.Write(metaBytes); err != nil {
		return fmt.Errorf("gapi: writing metadata part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)

	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return fmt.Errorf("gapi: creating media part: %w", err)
	}

	if _, err := io.Copy(part, media); err != nil {
		return fmt.Errorf("gapi: writing media part: %w", err)
	}

	return mw.Close()
}

// drain discards the rest of a response body so the connection is reused.
func drain(resp *http.Response) error {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("gapi: draining response body: %w", err)
	}

	return nil
}
