package proxy

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const defaultDriveBase = "https://drive.google.com"

var rxDriveFilePath = regexp.MustCompile(`^/file/d/([A-Za-z0-9_-]+)`)

func isDriveHost(host string) bool {
	host = strings.ToLower(host)
	return host == "drive.google.com" || host == "docs.google.com" || host == "drive.usercontent.google.com"
}

// DriveFileID returns the file id of a Google Drive share link, or "".
// Recognized: /file/d/<id>/..., /open?id=<id>, /uc?id=<id>.
func DriveFileID(u *url.URL) string {
	if u == nil || !isDriveHost(u.Hostname()) {
		return ""
	}
	if m := rxDriveFilePath.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	switch strings.TrimSuffix(u.Path, "/") {
	case "/open", "/uc", "/download":
		return u.Query().Get("id")
	}
	return ""
}

// DriveDownloadURL is the direct download form of a Drive file.
func DriveDownloadURL(base, id string) string {
	if base == "" {
		base = defaultDriveBase
	}
	return strings.TrimSuffix(base, "/") + "/uc?export=download&id=" + url.QueryEscape(id)
}

// ConfirmURL finds the real download link in Drive's "can't scan for
// viruses" page: the download form (action plus hidden inputs) or an
// anchor carrying confirm=. base resolves relative links.
func ConfirmURL(page io.Reader, base *url.URL) (string, bool) {
	doc, err := html.Parse(page)
	if err != nil {
		return "", false
	}

	var (
		formAction string
		inForm     bool
		params     = url.Values{}
		href       string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				if formAction == "" {
					if action := attr(n, "action"); strings.Contains(action, "download") || attr(n, "id") == "download-form" {
						formAction = action
						inForm = true
						for c := n.FirstChild; c != nil; c = c.NextSibling {
							walk(c)
						}
						inForm = false
						return
					}
				}
			case "input":
				if inForm && strings.EqualFold(attr(n, "type"), "hidden") && attr(n, "name") != "" {
					params.Set(attr(n, "name"), attr(n, "value"))
				}
			case "a":
				if h := attr(n, "href"); href == "" && strings.Contains(h, "confirm=") {
					href = h
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if formAction != "" {
		u, err := resolve(base, formAction)
		if err == nil {
			q := u.Query()
			for k, vs := range params {
				for _, v := range vs {
					q.Set(k, v)
				}
			}
			u.RawQuery = q.Encode()
			return u.String(), true
		}
	}
	if href != "" {
		if u, err := resolve(base, href); err == nil {
			return u.String(), true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u, nil
}
