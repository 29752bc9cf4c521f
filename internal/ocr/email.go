package ocr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
)

const maxMIMEDepth = 4

type email struct {
	text  string
	hints *parser.Context
}

// readEmail pulls the best body out of an RFC 822 message along with the
// sender and subject hints the parser uses for vendor detection. A text/plain
// part is preferred over text/html.
func readEmail(data []byte) (email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return email{}, fmt.Errorf("read message: %w", err)
	}
	dec := new(mime.WordDecoder)
	hints := &parser.Context{}
	if subj, err := dec.DecodeHeader(msg.Header.Get("Subject")); err == nil {
		hints.Subject = subj
	}
	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		hints.SenderName = addr.Name
		if at := strings.LastIndexByte(addr.Address, '@'); at >= 0 {
			hints.SenderDomain = addr.Address[at+1:]
		}
	}

	plain, htmlBody, err := walkPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
	if err != nil {
		return email{}, err
	}
	text := plain
	if strings.TrimSpace(text) == "" && htmlBody != nil {
		if text, err = HTMLToText(htmlBody); err != nil {
			return email{}, err
		}
	}
	return email{text: text, hints: hints}, nil
}

// walkPart returns the first text/plain body and the first text/html body
// found under one MIME part.
func walkPart(contentType, encoding string, body io.Reader, depth int) (string, []byte, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		media = "text/plain"
	}
	if strings.HasPrefix(media, "multipart/") {
		if depth >= maxMIMEDepth || params["boundary"] == "" {
			return "", nil, nil
		}
		var plain string
		var htmlBody []byte
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextRawPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return plain, htmlBody, fmt.Errorf("read mime part: %w", err)
			}
			p, h, err := walkPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, depth+1)
			if err != nil {
				return plain, htmlBody, err
			}
			if plain == "" {
				plain = p
			}
			if htmlBody == nil {
				htmlBody = h
			}
		}
		return plain, htmlBody, nil
	}

	raw, err := io.ReadAll(decodeTransfer(encoding, body))
	if err != nil {
		return "", nil, fmt.Errorf("decode body: %w", err)
	}
	switch media {
	case "text/plain":
		return string(raw), nil, nil
	case "text/html":
		return "", raw, nil
	}
	return "", nil, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	}
	return r
}

// newlineStripper drops CR and LF so wrapped base64 decodes.
type newlineStripper struct {
	r io.Reader
}

func (s *newlineStripper) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		j := 0
		for _, c := range p[:n] {
			if c != '\r' && c != '\n' {
				p[j] = c
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
