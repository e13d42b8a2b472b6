package transport

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// FileUpload — файл, выбранный оператором.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// SubmitFile — общая операция "отправить файл + параметры и разобрать JSON-подтверждение".
// Ей пользуются и информационная загрузка датасета, и запуск реплея.
func SubmitFile[T any](ctx context.Context, c *Client, path string, query url.Values, file FileUpload) Outcome[T] {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return Fail[T](&Failure{Kind: KindParse, Message: "Invalid upload: " + err.Error()})
	}
	if file.Content != nil {
		if _, err := io.Copy(part, file.Content); err != nil {
			return Fail[T](&Failure{Kind: KindParse, Message: "Invalid upload: " + err.Error()})
		}
	}
	if err := mw.Close(); err != nil {
		return Fail[T](&Failure{Kind: KindParse, Message: "Invalid upload: " + err.Error()})
	}

	h := make(http.Header)
	h.Set("Content-Type", mw.FormDataContentType())
	return Request[T](ctx, c, path, Options{
		Method: http.MethodPost,
		Query:  query,
		Header: h,
		Body:   &buf,
	})
}
