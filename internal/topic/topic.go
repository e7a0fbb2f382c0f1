// Package topic implements TopicResolver, classifying an archive's file
// name to the message-bus topic its produced URLs are published to.
package topic

import (
	"regexp"

	"github.com/gdelt-collective/ingest/ingest"
)

var (
	exportPattern   = regexp.MustCompile(`translation\.export\.CSV\.zip$`)
	mentionsPattern = regexp.MustCompile(`translation\.mentions\.CSV\.zip$`)
)

// Resolver classifies archive names into one of two configured topics.
type Resolver struct {
	exportTopic   string
	mentionsTopic string
}

// New builds a Resolver publishing export archives to exportTopic and
// mentions archives to mentionsTopic.
func New(exportTopic, mentionsTopic string) *Resolver {
	return &Resolver{exportTopic: exportTopic, mentionsTopic: mentionsTopic}
}

// Resolve returns the destination topic for archiveFileName, or a
// ClassificationError if the name matches neither recognized pattern.
func (r *Resolver) Resolve(archiveFileName string) (string, error) {
	switch {
	case exportPattern.MatchString(archiveFileName):
		return r.exportTopic, nil
	case mentionsPattern.MatchString(archiveFileName):
		return r.mentionsTopic, nil
	default:
		return "", ingest.ClassificationError{FileName: archiveFileName}
	}
}
