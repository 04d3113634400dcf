package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMetadataMismatch = errors.New("metadata does not match message type")
	ErrFileNameRequired = errors.New("file messages require a file name")
)

// Metadata is the closed set of per-type payloads a message may carry.
// Only the four types in this file implement it.
type Metadata interface {
	Kind() MessageType
	validate() error
}

// TextMetadata carries nothing; plain text needs no extra fields
type TextMetadata struct{}

func (TextMetadata) Kind() MessageType { return MessageText }
func (TextMetadata) validate() error   { return nil }

// FileMetadata describes an attachment. The file itself lives elsewhere.
type FileMetadata struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

func (FileMetadata) Kind() MessageType { return MessageFile }

func (f FileMetadata) validate() error {
	if strings.TrimSpace(f.FileName) == "" {
		return ErrFileNameRequired
	}
	if f.FileSize < 0 {
		return fmt.Errorf("invalid file size %d", f.FileSize)
	}
	return nil
}

// SystemMetadata names the system event that produced the message
type SystemMetadata struct {
	Event string `json:"event,omitempty"`
}

func (SystemMetadata) Kind() MessageType { return MessageSystem }
func (SystemMetadata) validate() error   { return nil }

// EmergencyMetadata carries the channels a sender explicitly asked for
type EmergencyMetadata struct {
	Police     bool `json:"police,omitempty"`
	Ambulance  bool `json:"ambulance,omitempty"`
	CrisisTeam bool `json:"crisisTeam,omitempty"`
}

func (EmergencyMetadata) Kind() MessageType { return MessageEmergency }
func (EmergencyMetadata) validate() error   { return nil }

// ValidateMetadata checks that meta belongs to kind and is well formed.
// A nil meta is valid for every kind except file.
func ValidateMetadata(kind MessageType, meta Metadata) error {
	if meta == nil {
		if kind == MessageFile {
			return ErrFileNameRequired
		}
		return nil
	}
	if meta.Kind() != kind {
		return fmt.Errorf("%w: got %s for %s", ErrMetadataMismatch, meta.Kind(), kind)
	}
	return meta.validate()
}

// DecodeMetadata decodes raw JSON into the variant for kind. Empty input yields nil.
func DecodeMetadata(kind MessageType, raw json.RawMessage) (Metadata, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var (
		meta Metadata
		err  error
	)
	switch kind {
	case MessageText, "":
		var m TextMetadata
		err = json.Unmarshal(trimmed, &m)
		meta = m
	case MessageFile:
		var m FileMetadata
		err = json.Unmarshal(trimmed, &m)
		meta = m
	case MessageSystem:
		var m SystemMetadata
		err = json.Unmarshal(trimmed, &m)
		meta = m
	case MessageEmergency:
		var m EmergencyMetadata
		err = json.Unmarshal(trimmed, &m)
		meta = m
	default:
		return nil, fmt.Errorf("unknown message type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", kind, err)
	}
	return meta, nil
}
