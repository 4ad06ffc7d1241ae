package protoarray

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/emicklei/dot"

	"github.com/mbaxter/artemis/config/params"
)

const template = `<html>
<head>
    <script src="//cdnjs.cloudflare.com/ajax/libs/viz.js/2.1.2/viz.js"></script>
    <script src="//cdnjs.cloudflare.com/ajax/libs/viz.js/2.1.2/full.render.js"></script>
<body>
    <script type="application/javascript">
        var graph = ` + "`%s`;" + `
        var viz = new Viz();
        viz.renderSVGElement(graph) // reading the graph.
            .then(function(element) {
                document.body.appendChild(element); // appends to document.
            })
            .catch(error => {
                // Create a new Viz instance (@see Caveats page for more info)
                viz = new Viz();
                // Possibly display the error
                console.error(error);
            });
    </script>
</head>
</body>
</html>`

// TreeHandler is a handler to serve /tree page in metrics, it renders the
// current fork choice store as a graphviz digraph.
func (f *ForkChoice) TreeHandler(w http.ResponseWriter, _ *http.Request) {
	nodes := f.Nodes()

	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "RL")
	graph.Attr("labeljust", "l")

	dotNodes := make([]*dot.Node, len(nodes))

	for i := len(nodes) - 1; i >= 0; i-- {
		// Construct label for each node.
		slot := strconv.Itoa(int(nodes[i].Slot()))
		weight := strconv.Itoa(int(nodes[i].Weight() / params.BeaconConfig().GweiPerEth)) // Convert unit Gwei to unit ETH.
		bestDescendant := strconv.Itoa(int(nodes[i].BestDescendant()))
		index := strconv.Itoa(i)
		label := "slot: " + slot + "\n index: " + index + "\n bestDescendant: " + bestDescendant + "\n weight: " + weight

		dotN := graph.Node(index).Box().Attr("label", label)
		if nodes[i].BestDescendant() == NonExistentNode {
			// Leaves of the store are the candidate heads.
			dotN = dotN.Attr("color", "green")
		}
		dotNodes[i] = &dotN
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Parent() != NonExistentNode && nodes[i].Parent() < uint64(len(dotNodes)) {
			graph.Edge(*dotNodes[i], *dotNodes[nodes[i].Parent()])
		}
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, template, graph.String()); err != nil {
		log.WithError(err).Error("Failed to render fork choice tree page")
	}
}
