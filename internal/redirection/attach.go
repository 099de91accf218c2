package redirection

import (
	"net/url"
	"strconv"
	"time"
)

// AttachToken appends the issued token to a destination URL.
//
// Any pre-existing "token" query parameter is removed first, so a
// destination template that already carried one cannot end up with a
// duplicated or injected value. When exp is non-zero an "exp" parameter
// (unix seconds) is set too.
//
// If the URL does not parse, the login must not fail over a cosmetic
// destination: the query string is hand-appended instead.
func AttachToken(dest, token string, exp time.Time) string {
	u, err := url.Parse(dest)
	if err != nil {
		sep := "?"
		for _, c := range dest {
			if c == '?' {
				sep = "&"
				break
			}
		}
		out := dest + sep + "token=" + url.QueryEscape(token)
		if !exp.IsZero() {
			out += "&exp=" + strconv.FormatInt(exp.Unix(), 10)
		}
		return out
	}

	q := u.Query()
	q.Del("token")
	q.Set("token", token)
	if !exp.IsZero() {
		q.Set("exp", strconv.FormatInt(exp.Unix(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
