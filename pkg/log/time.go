// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import "time"

// Format: yyyymmdd_hhmmss
const DefaultTimestampLayout = "20060102_150405"

var TimestampLayout = DefaultTimestampLayout

func Timestamp() string { return time.Now().Format(TimestampLayout) }
