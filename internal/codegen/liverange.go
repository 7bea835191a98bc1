/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package codegen

import (
    `fmt`
    `io`
    `sort`

    `github.com/ajstarks/svgo`
)

// DrawLiveRanges renders the allocated intervals of ctx as an SVG image, one
// row per linear position and one column per value.
func DrawLiveRanges(w io.Writer, ctx *Context) error {
    maxi := 0
    rows := make(map[int]int)
    text := make(map[int]string)

    /* label every position */
    for _, bb := range ctx.Sched.Blocks {
        for _, h := range bb.Nodes {
            p := ctx.Func.Node(h)
            s := fmt.Sprintf("%s = %s %s", h, p.Kind, p.Type)
            text[ctx.pos[h]] = s
            if len(s) > maxi {
                maxi = len(s)
            }
        }
        text[ctx.bend[bb.Id]] = fmt.Sprintf("end %s", bb)
    }

    /* rows in position order */
    pos := make([]int, 0, len(text))
    for p := range text {
        pos = append(pos, p)
    }
    sort.Ints(pos)
    for i, p := range pos {
        rows[p] = 95 + i * 24
    }

    /* columns in value order */
    ivs := append([]*Interval(nil), ctx.Intervals...)
    sort.Slice(ivs, func(i int, j int) bool { return ivs[i].Value < ivs[j].Value })

    insw := maxi * 9 + 120
    regw := 8 * 12 + 16
    buf := &errWriter { w: w }
    p := svg.New(buf)
    p.Start(len(ivs) * regw + insw + 100, len(pos) * 24 + 100)
    p.Rect(0, 0, len(ivs) * regw + insw + 100, len(pos) * 24 + 100, "fill:white")

    /* instructions */
    for _, v := range pos {
        h := rows[v]
        p.Text(insw, h + 5, text[v], "fill:black;font-size:16px;font-family:monospace;text-anchor:end")
        p.Line(insw + 10, h, len(ivs) * regw + insw + 50, h, "stroke:lightgray")
    }

    /* intervals, hollow at the definition */
    for i, iv := range ivs {
        x := insw + i * regw + 50
        p.Text(x, 50, iv.Value.String(), "fill:black;font-size:16px;font-family:monospace;text-anchor:middle")
        p.Text(x, 70, iv.Loc.String(), "fill:gray;font-size:12px;font-family:monospace;text-anchor:middle")
        p.Line(x, rows[nearest(pos, iv.Start)], x, rows[nearest(pos, iv.End)], "stroke:black;stroke-width:3")
        p.Circle(x, rows[nearest(pos, iv.Start)], 4, "fill:white;stroke:black;stroke-width:2")
        p.Circle(x, rows[nearest(pos, iv.End)], 4, "fill:black;stroke:black;stroke-width:2")
    }

    p.End()
    return buf.err
}

func nearest(pos []int, v int) int {
    i := sort.SearchInts(pos, v)
    if i == len(pos) {
        i--
    }
    return pos[i]
}

type errWriter struct {
    w   io.Writer
    err error
}

func (self *errWriter) Write(b []byte) (int, error) {
    if self.err != nil {
        return len(b), nil
    }
    n, err := self.w.Write(b)
    self.err = err
    return n, nil
}
