package http

import (
	"errors"
	"net/http"

	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/pkg/httpx"
	"github.com/hoope/openbanking/pkg/slogx"
)

// fragmentRewritePage re-requests the callback with the fragment
// parameters moved into the query string. With response_mode=fragment
// the bank puts code/state after '#', which never reaches the server,
// so the first hit arrives with no parameters at all and this page
// bounces them back in a form we can see.
const fragmentRewritePage = `<!DOCTYPE html>
<html>
<head><title>Completing authorization</title></head>
<body>
<p>Completing authorization&hellip;</p>
<script>
  if (window.location.hash.length > 1) {
    window.location.replace(
      window.location.pathname + "?" + window.location.hash.substring(1)
    );
  } else {
    document.body.textContent = "No authorization parameters received.";
  }
</script>
</body>
</html>`

const callbackDonePage = `<!DOCTYPE html>
<html>
<head><title>Authorization complete</title></head>
<body>
<p>Authorization received. You can close this window and return to the app.</p>
</body>
</html>`

// CallbackHandler serves GET /callback, the redirect target registered
// with the bank. Parameters are forwarded to whichever flow awaits them.
type CallbackHandler struct {
	Broker *service.CallbackBroker
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	q := r.URL.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		// First hit with fragment parameters; rewrite client-side.
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fragmentRewritePage))
		return
	}

	if err := h.Broker.Deliver(r.URL.String()); err != nil {
		if errors.Is(err, service.ErrUnknownState) {
			log.Warn("callback for unknown state", "state", q.Get("state"))
			httpx.WriteError(w, http.StatusNotFound, "unknown_state",
				"no authorization flow is waiting on this redirect")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackDonePage))
}
