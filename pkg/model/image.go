package model

import "strings"

// DefaultImageTag is used when an image reference carries no explicit tag.
const DefaultImageTag = "latest"

// DockerImage identifies a container image by repository and tag.
type DockerImage struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// ParseDockerImage parses a "repository[:tag]" reference. The tag defaults to
// "latest" when absent. An empty repository is a FormatError.
func ParseDockerImage(s string) (DockerImage, error) {
	repository := s
	tag := DefaultImageTag

	if i := strings.LastIndex(s, ":"); i >= 0 {
		repository = s[:i]
		tag = s[i+1:]
	}

	if repository == "" {
		return DockerImage{}, &FormatError{
			Value:  s,
			Reason: "image names must have format 'repository[:tag]'",
		}
	}

	return DockerImage{Repository: repository, Tag: tag}, nil
}

// FullName returns the "repository:tag" form suitable for a container runtime.
func (i DockerImage) FullName() string {
	return i.Repository + ":" + i.Tag
}
