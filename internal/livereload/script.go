package livereload

// ClientScript connects to the hub and reloads the page, or only its
// stylesheets, when assets change.
const ClientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var socket = new WebSocket(proto + "//" + location.host + "/_assets/livereload");
  socket.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === "css") {
      document.querySelectorAll('link[rel="stylesheet"]').forEach(function (link) {
        var url = new URL(link.href);
        url.searchParams.set("v", Date.now());
        link.href = url.toString();
      });
      return;
    }
    location.reload();
  };
})();
`
