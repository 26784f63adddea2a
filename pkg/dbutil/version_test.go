// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dbutil

import (
	. "github.com/pingcap/check"
)

func (*testDBSuite) TestParseServerVersion(c *C) {
	testCases := []struct {
		version string
		expect  string
	}{
		{"8.0.34", "8.0.34"},
		{"8.0.34-0ubuntu0.22.04.1", "8.0.34"},
		{"5.7.25-TiDB-v7.5.0", "7.5.0"},
		{"5.7.10-TiDB-v2.1.0-beta-173-g7e48ab1", "2.1.0-beta-173"},
		{"10.11.2-MariaDB-1:10.11.2+maria~ubu2204", "10.11.2"},
		{"10.4", "10.4.0"},
		{" 3.46.0 ", "3.46.0"},
	}

	for _, testCase := range testCases {
		v, err := ParseServerVersion(testCase.version)
		c.Assert(err, IsNil, Commentf("version %s", testCase.version))
		c.Assert(v.String(), Equals, testCase.expect)
	}

	_, err := ParseServerVersion("unknown")
	c.Assert(err, NotNil)
}
