package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v5"
)

var funcMap = template.FuncMap{
	"toJSON": func(v any) template.JS {
		b, _ := json.Marshal(v)
		return template.JS(b)
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(funcMap).Parse(indexHTML))

func (s *Server) indexPage(c *echo.Context) error {
	data := struct {
		Sessions any
	}{Sessions: s.manager.ListSessions(false)}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	_, err := rw.Write(buf.Bytes())
	return err
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>claude-run</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica Neue, Arial; margin: 0; }
    header { padding: 10px 16px; border-bottom: 1px solid #eee; display: flex; gap: 16px; align-items: center; }
    .container { display: grid; grid-template-columns: 340px 1fr; height: calc(100vh - 52px); }
    .sidebar { border-right: 1px solid #eee; overflow: auto; }
    .content { overflow: auto; }
    .item { padding: 10px 12px; border-bottom: 1px solid #f3f3f3; cursor: pointer; }
    .item:hover { background: #fafafa; }
    .item.active { background: #f0f7ff; }
    .meta { color: #666; font-size: 12px; }
    .msg { padding: 10px 12px; border-bottom: 1px solid #f3f3f3; white-space: pre-wrap; }
    .pill { font-size: 12px; background: #efefef; border-radius: 9999px; padding: 2px 8px; margin-right: 6px; }
    .pill.role-user { background: #e0f2fe; }
    .pill.role-assistant { background: #e9d5ff; }
    input[type=search] { flex: 1; padding: 6px 10px; border: 1px solid #ccc; border-radius: 6px; }
  </style>
</head>
<body>
  <header>
    <strong>claude-run</strong>
    <input type="search" id="q" placeholder="search transcripts (project:path after:date supported)" />
    <span class="meta" id="status">connecting…</span>
  </header>
  <div class="container">
    <div class="sidebar" id="sessions"></div>
    <div class="content" id="messages"></div>
  </div>
  <script>
    var sessions = {{toJSON .Sessions}} || [];
    var current = null;
    var nextOffset = 0;

    function esc(s) {
      var d = document.createElement('div');
      d.textContent = s == null ? '' : s;
      return d.innerHTML;
    }

    function renderSessions(list) {
      document.getElementById('sessions').innerHTML = list.map(function (s) {
        var active = s.id === current ? ' active' : '';
        return '<div class="item' + active + '" onclick="selectSession(\'' + s.id + '\')">'
          + '<div>' + esc(s.display || s.id) + '</div>'
          + '<div class="meta">' + esc(s.projectName) + ' · ' + new Date(s.timestamp).toLocaleString() + '</div>'
          + '</div>';
      }).join('');
    }

    function messageText(m) {
      if (!m.message) return m.summary || '';
      var c = m.message.content;
      if (typeof c === 'string') return c;
      return (c || []).filter(function (b) { return b.type === 'text'; })
        .map(function (b) { return b.text; }).join('\n');
    }

    function appendMessages(msgs) {
      var el = document.getElementById('messages');
      el.innerHTML += msgs.map(function (m) {
        var text = messageText(m);
        if (!text) return '';
        var cls = m.type === 'assistant' ? 'role-assistant' : 'role-user';
        return '<div class="msg"><span class="pill ' + cls + '">' + esc(m.type) + '</span>' + esc(text) + '</div>';
      }).join('');
      el.scrollTop = el.scrollHeight;
    }

    async function selectSession(id) {
      current = id;
      nextOffset = 0;
      document.getElementById('messages').innerHTML = '';
      var res = await fetch('/api/sessions/' + encodeURIComponent(id) + '?offset=0');
      var data = await res.json();
      nextOffset = data.nextOffset;
      appendMessages(data.messages);
      renderSessions(sessions);
    }

    async function refreshSessions() {
      var res = await fetch('/api/sessions');
      sessions = await res.json();
      renderSessions(sessions);
    }

    async function tail() {
      if (!current) return;
      var res = await fetch('/api/sessions/' + encodeURIComponent(current) + '?offset=' + nextOffset);
      var data = await res.json();
      nextOffset = data.nextOffset;
      appendMessages(data.messages);
    }

    document.getElementById('q').addEventListener('change', async function () {
      var q = this.value.trim();
      if (!q) { renderSessions(sessions); return; }
      var res = await fetch('/api/search?q=' + encodeURIComponent(q));
      var results = await res.json();
      renderSessions(results.map(function (r) { return r.session; }));
    });

    var source = new EventSource('/api/events');
    source.onopen = function () { document.getElementById('status').textContent = 'live'; };
    source.onerror = function () { document.getElementById('status').textContent = 'disconnected'; };
    source.onmessage = function (e) {
      var ev = JSON.parse(e.data);
      if (ev.type === 'history' || ev.type === 'project') refreshSessions();
      if (ev.type === 'session' && ev.sessionId === current) tail();
    };

    renderSessions(sessions);
  </script>
</body>
</html>
`
