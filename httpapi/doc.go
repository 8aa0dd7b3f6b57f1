// Package httpapi serves the /auth routes of an [authcore.Engine] over echo,
// carrying tokens in cookies and reporting failures in a fixed JSON
// envelope:
//
//	{"error":{"code":"rate_limited","message":"rate limited"}}
package httpapi
