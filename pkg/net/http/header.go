package http

const (
	ApplicationJsonContentType = "application/json"
	ApplicationCborContentType = "application/cbor"
	TextPlainContentType       = "text/plain; charset=utf-8"

	ContentTypeHeaderKey        = "Content-Type"
	ContentTypeOptionsHeaderKey = "X-Content-Type-Options"
	AcceptHeaderKey             = "Accept"
	ETagHeaderKey               = "ETag"
	LocationHeaderKey           = "Location"

	PagingLimitHeaderKey = "X-Paging-Limit"
	PagingSinceHeaderKey = "X-Paging-Since"
	PagingUntilHeaderKey = "X-Paging-Until"
)
