package internal

import "errors"

var ErrTreeNotFound = errors.New("tree not found")
var ErrLinkNotFound = errors.New("link not found")
var ErrSlugExists = errors.New("slug already exists")
