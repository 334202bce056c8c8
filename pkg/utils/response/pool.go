package response

import "sync"

// responsePool reduces allocations on the hot response path.
// Responses handed to callers must be returned with Release after
// serialization; a released Response must not be touched again.
var responsePool = sync.Pool{
	New: func() interface{} {
		return &Response{}
	},
}

// Acquire takes a zeroed Response from the pool.
func Acquire() *Response {
	return responsePool.Get().(*Response)
}

// Release resets the Response and returns it to the pool.
func Release(r *Response) {
	if r == nil {
		return
	}
	*r = Response{}
	responsePool.Put(r)
}
