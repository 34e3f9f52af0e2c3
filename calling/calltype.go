/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import "strings"

// DetectCallType classifies a call leg from its channel id. The backend
// encodes the transport in the id it mints: WebRTC legs get a
// "webrtc-call-" prefix, websocket-only legs a "ws-" prefix, and plain SIP
// legs a bare numeric or uuid id. Detection is deterministic so every
// component that sees the same id agrees on the type.
func DetectCallType(channelID string) CallType {
	id := strings.ToLower(channelID)

	if strings.HasPrefix(id, "webrtc-call-") || strings.Contains(id, "webrtc") {
		return CallTypeWebRTCNative
	}
	if strings.HasPrefix(id, "ws-") || strings.Contains(id, "websocket") {
		return CallTypeWebSocketLeg
	}
	return CallTypeLegacySIP
}
