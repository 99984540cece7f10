// Package intercept routes an HTTP client's outgoing requests through an
// ordered chain of candidate handlers for the lifetime of a scope.
//
// A Mock saves the client's transport on Activate, consults its handlers
// for every request while active, and restores the saved transport on
// Deactivate. Handlers that decline a request pass it to the next
// candidate; if every handler declines, the request goes out over the
// saved transport and real network I/O occurs.
//
//	mock := intercept.New(
//		intercept.URLMatch(
//			urlmatch.MustNew(urlmatch.Netloc(`(.*\.)?google\.com$`)),
//			func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
//				return response.Text("Hello from Google"), nil
//			},
//		),
//	)
//	mock.Run(func() {
//		resp, err := http.Get("http://google.com/")
//		// resp carries the synthetic body
//	})
package intercept
