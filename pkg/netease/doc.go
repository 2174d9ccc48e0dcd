// Package netease talks to the photo site being backed up.
//
// A backup walks three kinds of pages, all served in a legacy Chinese
// encoding and transcoded to UTF-8 before parsing:
//
//   - the owner's landing page, whose inline script names the album index
//     feed (ResolveIndexURL)
//   - the album index feed, a JavaScript array of albums (FetchAlbums,
//     ParseAlbums)
//   - one item feed per album, a JavaScript array of photos whose image
//     references are shard-encoded (FetchItems, ParseItems, PhotoURL)
//
// The Parse* variants never fail: they log a warning and return an empty
// slice, so one broken feed does not stop the whole backup. Photo bodies are
// fetched with a separate HTTP client (FetchPhoto) whose TLS settings are
// independent from the page client.
package netease
