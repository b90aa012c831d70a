// internal/web/index.go
//
// Minimal publish front-end served at the root path.  One self-contained
// page, no build step: a textarea for the document, a page-name field, a
// mode selector, and a result panel showing the view URL after publish.

package web

import "net/http"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>dweb publisher</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
  textarea { width: 100%; height: 16rem; font-family: monospace; }
  input, select, button { font-size: 1rem; padding: .35rem .5rem; }
  label { display: block; margin-top: 1rem; font-weight: 600; }
  #result { margin-top: 1rem; padding: .75rem; border-left: 3px solid #888; display: none; }
  #result.ok { border-color: #2a7; }
  #result.err { border-color: #c33; }
</style>
</head>
<body>
<h1>Publish a page</h1>
<label for="pageName">Page name</label>
<input id="pageName" value="index" size="30">
<label for="mode">Storage mode</label>
<select id="mode">
  <option value="gundb">Embedded (graph record)</option>
  <option value="relay">File network upload</option>
  <option value="deals">Existing content address</option>
  <option value="textarea">Compressed token</option>
</select>
<label for="doc">Document</label>
<textarea id="doc">&lt;html&gt;&lt;body&gt;&lt;h1&gt;Hello&lt;/h1&gt;&lt;/body&gt;&lt;/html&gt;</textarea>
<p><button id="go">Publish</button></p>
<div id="result"></div>
<script>
document.getElementById('go').addEventListener('click', async () => {
  const mode = document.getElementById('mode').value;
  const pageName = document.getElementById('pageName').value;
  const doc = document.getElementById('doc').value;
  const body = { pageName, mode };
  if (mode === 'deals') body.ipfsHash = doc.trim();
  else if (mode === 'textarea') body.text = doc;
  else body.html = doc;

  const panel = document.getElementById('result');
  panel.style.display = 'block';
  panel.className = '';
  panel.textContent = 'publishing…';
  try {
    const resp = await fetch('/dweb/api/publish', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(body),
    });
    const out = await resp.json();
    if (!out.success) throw new Error(out.error || resp.statusText);
    panel.className = 'ok';
    const href = '/dweb/view/' + out.pubKey + '/' + out.pageName;
    panel.innerHTML = 'published as <a href="' + href + '">' + href + '</a>' +
      (out.degraded ? ' (simplified: extra files were dropped)' : '');
  } catch (err) {
    panel.className = 'err';
    panel.textContent = 'publish failed: ' + err.message;
  }
});
</script>
</body>
</html>
`
