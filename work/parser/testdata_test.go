package parser

const testMasterPlaylist = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-INDEPENDENT-SEGMENTS
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",DEFAULT=YES,URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360,AUDIO="aud"
360p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720,AUDIO="aud"
https://cdn.example.com/hd/720p.m3u8?token=abc
#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=86000,URI="iframes/360p.M3U8"
`

const testMediaPlaylist = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-KEY:METHOD=AES-128,URI="keys/key.bin",IV=0x00000000000000000000000000000001
#EXT-X-MAP:URI="init.mp4"
#EXTINF:9.009,
segment0.m4s
#EXTINF:9.009,
/abs/segment1.m4s
#EXTINF:3.003,
//edge.example.com/segment2.m4s
#EXT-X-ENDLIST
`
