/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

// Status codes the core itself produces or a handler commonly raises.
const (
	StatusSwitchingProtocols  = 101
	StatusOK                  = 200
	StatusPartialContent      = 206
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusLengthRequired      = 411
	StatusRequestHeaderFields = 431
	StatusInternalServerError = 500
)

var reasonPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	416: "Range Not Satisfiable",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}

// StatusText returns the reason phrase for code from the fixed table, or
// "" if the code is unrecognized.
func StatusText(code int) string {
	return reasonPhrases[code]
}
